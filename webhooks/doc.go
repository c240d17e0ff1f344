// Package webhooks handles the platform callback endpoint.
//
// Every request is verified first: the platform signs the handshake token
// together with the request timestamp and nonce. A GET is the handshake and
// echoes echostr back when the signature holds. A POST carries a user
// message and is answered by the inbound dispatcher. Responses are always
// HTTP 200; a failed verification is expressed in the body only.
package webhooks
