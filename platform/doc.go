// Package platform talks to the WeChat Official Account HTTP API.
//
// TokenClient implements core.TokenFetcher against /cgi-bin/token. Client
// makes authorized calls: it asks a credential source for the current
// access token, and on a token-invalid errcode refreshes once and retries.
package platform
