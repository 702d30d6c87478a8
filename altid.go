package altid

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aqwari.net/net/altid/altidproto"
)

// The blocking methods below wrap the callback API for programs that
// are happy to spend a goroutine per request. They must not be
// called from a callback. If ctx is done first, the method returns
// ctx.Err(), but the sequence still runs to completion on the
// connection, so no fids are leaked.

var tracer = otel.Tracer("aqwari.net/net/altid")

type result[T any] struct {
	v   T
	err error
}

func wait[T any](ctx context.Context, start func(done func(T, error))) (T, error) {
	ch := make(chan result[T], 1)
	start(func(v T, err error) {
		ch <- result[T]{v, err}
	})
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Conn) span(ctx context.Context, op, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("altid.path", name),
		attribute.String("altid.conn", c.id),
	)
	return tracer.Start(ctx, "altid."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Read reads up to count bytes at offset from the file at path
// name. Count is reduced to fit the negotiated message size.
func (c *Conn) Read(ctx context.Context, name string, offset uint64, count uint32) (data []byte, err error) {
	ctx, span := c.span(ctx, "Read", name,
		attribute.Int64("altid.offset", int64(offset)),
		attribute.Int64("altid.count", int64(count)))
	defer func() { endSpan(span, err) }()

	return wait(ctx, func(done func([]byte, error)) {
		c.ReadFile(SplitPath(name), offset, count, done)
	})
}

// Write writes data to the file at path name, starting at offset 0,
// and returns the number of bytes written.
func (c *Conn) Write(ctx context.Context, name string, data []byte) (n int, err error) {
	ctx, span := c.span(ctx, "Write", name, attribute.Int("altid.count", len(data)))
	defer func() { endSpan(span, err) }()

	return wait(ctx, func(done func(int, error)) {
		c.WriteFile(SplitPath(name), data, done)
	})
}

// Stat returns the directory entry of the file at path name.
func (c *Conn) Stat(ctx context.Context, name string) (st altidproto.Stat, err error) {
	ctx, span := c.span(ctx, "Stat", name)
	defer func() { endSpan(span, err) }()

	return wait(ctx, func(done func(altidproto.Stat, error)) {
		c.StatFile(SplitPath(name), done)
	})
}

// Wstat changes the directory entry of the file at path name.
func (c *Conn) Wstat(ctx context.Context, name string, st altidproto.Stat) (err error) {
	ctx, span := c.span(ctx, "Wstat", name)
	defer func() { endSpan(span, err) }()

	_, err = wait(ctx, func(done func(struct{}, error)) {
		c.WstatFile(SplitPath(name), st, func(err error) { done(struct{}{}, err) })
	})
	return err
}

// Remove removes the file at path name.
func (c *Conn) Remove(ctx context.Context, name string) (err error) {
	ctx, span := c.span(ctx, "Remove", name)
	defer func() { endSpan(span, err) }()

	_, err = wait(ctx, func(done func(struct{}, error)) {
		c.RemoveFile(SplitPath(name), func(err error) { done(struct{}{}, err) })
	})
	return err
}

// Create creates the file at path name with the given permissions.
// Include altidproto.DMDIR in perm to create a directory.
func (c *Conn) Create(ctx context.Context, name string, perm uint32) (err error) {
	ctx, span := c.span(ctx, "Create", name, attribute.Int64("altid.perm", int64(perm)))
	defer func() { endSpan(span, err) }()

	elems := SplitPath(name)
	if len(elems) == 0 {
		return ErrNotExist
	}
	dir, base := elems[:len(elems)-1], elems[len(elems)-1]
	mode := altidproto.OWRITE
	if perm&altidproto.DMDIR != 0 {
		mode = altidproto.OREAD
	}
	_, err = wait(ctx, func(done func(struct{}, error)) {
		c.CreateFile(dir, base, perm, mode, func(err error) { done(struct{}{}, err) })
	})
	return err
}
