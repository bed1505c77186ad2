/*
Package mgmt implements a client for the server's JMX REST management
connector.

The connector exposes a hypermedia API. A discovery request returns
resource references, each carrying a link to a detail document; the
detail document links to the attribute list and declares the operations
with their invocation URLs. The client never builds those URLs itself:

	refs, err := client.Discover(ctx, "WebSphere:feature=kernel,name=ServerInfo", "")
	attrs, err := client.FetchAttributes(ctx, refs[0])
	found, err := client.Invoke(ctx, ref, "restart")

Transient failures (transport errors, timeouts, 408, 429 and 5xx) are
retried with a fixed delay up to Config.MaxRetries times. Any other failure
is returned immediately as a *RequestFailedError.

TLS certificate verification is disabled for the client's own transport,
since a development server presents a self-signed certificate.
*/
package mgmt
