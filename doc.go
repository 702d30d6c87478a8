/*
Package altid is a 9P2000 client for altid services.

An altid service presents chat buffers, control channels and feeds
as files. The altid package connects to a service, walks its
namespace and reads and writes those files. The Dial function
connects and completes the version and attach handshake:

	conn, err := altid.Dial(ctx, "localhost:564")
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	feed, err := conn.Read(ctx, "/irc/#altid/feed", 0, 8192)

Requests on a Conn are sent one at a time, in the order they were
submitted. Besides the blocking methods shown above, every operation
has a callback form that runs on the connection's event loop, and the
callbacks may chain further requests:

	conn.Walk(altid.SplitPath("/irc/ctrl"), func(h *altid.Handle, err error) {
		if err != nil {
			return
		}
		h.Open(altidproto.OWRITE, func(err error) {
			if err != nil {
				h.Clunk(func(error) {})
				return
			}
			h.WriteAt(0, []byte("open #9fans"), func(int, error) {
				h.Clunk(func(error) {})
			})
		})
	})

If the server aborts a connection made with Dial, it is dialed again
once. Requests pending at the time fail with a *TransportError;
handles from before the reconnect become stale. Errors sent by the
server arrive as a *RemoteError and leave the connection usable.

A Services value holds one connection per discovered service.
*/
package altid
