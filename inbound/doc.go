// Package inbound parses platform message payloads and builds the passive
// text reply for each one.
//
// Replies are chosen by an ordered rule table. The first rule whose Match
// returns true supplies the content; when none match, the dispatcher falls
// back to a fixed reply. Dispatch never fails: malformed payloads get the
// fallback too.
package inbound
