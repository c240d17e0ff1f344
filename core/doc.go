// Package core contains the WeChat credential domain: the Credential value,
// its freshness rules, the store and fetcher contracts, and the Manager that
// keeps a valid access token available to outbound callers. Transport, storage
// and webhook adapters depend on this package; core depends on none of them.
package core
