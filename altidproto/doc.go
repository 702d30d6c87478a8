/*
Package altidproto provides low-level routines for encoding and
decoding 9P2000 messages, as spoken by altid services.

Messages are plain Go values. Marshal produces the complete wire
representation of a message, and Unmarshal parses a message body once
its type and tag are known. The Encoder and Decoder types move whole
frames over an io.Writer and io.Reader, respectively.

Every 9P message begins with a 7-byte header:

	size[4] type[1] tag[2]

All integers are little-endian. The Decoder never reads past the end
of a frame, so a bad message does not desynchronize the stream; it is
reported as a BadMessage and the Decoder moves on to the next frame.
*/
package altidproto
