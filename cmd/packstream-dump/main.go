// Command packstream-dump reads a PackStream byte stream from a file or
// stdin and prints an indented human-readable trace of every marker it
// decodes: one line per value, with container nesting reflected in
// indentation and struct signatures annotated.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/packstream/packstream"
)

func main() {
	bufferSize := flag.Int("buffer", packstream.DefaultBufferSize, "reassembly buffer size in bytes")
	verbose := flag.Bool("verbose", false, "log buffer-management events (refill, oversize streaming, reset) to stderr")
	flag.Parse()

	path := "-"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	r, closeFn, err := openInput(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "packstream-dump:", err)
		os.Exit(1)
	}
	defer closeFn()

	src, err := packstream.NewByteSource(r, packstream.Config{BufferSize: *bufferSize})
	if err != nil {
		fmt.Fprintln(os.Stderr, "packstream-dump:", err)
		os.Exit(1)
	}

	if *verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		src.WithLogger(logger)
	}

	if err := dump(packstream.NewUnpacker(src)); err != nil {
		fmt.Fprintln(os.Stderr, "packstream-dump:", err)
		os.Exit(1)
	}
}

func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// signatureNames caches a display name per struct signature byte this
// process has already resolved, so repeated structs of the same kind
// within (or across) concurrently dumped streams print consistently
// without recomputing the name. Keyed on the signature byte alone: the
// dumper has no schema, so "name" is just the canonical hex form, but
// the cache is exercised the same way a schema-aware name table would be.
var signatureNames = xsync.NewMapOf[byte, string]()

func signatureName(sig byte) string {
	if name, ok := signatureNames.Load(sig); ok {
		return name
	}
	name := fmt.Sprintf("struct<0x%02X>", sig)
	signatureNames.Store(sig, name)
	return name
}

// frame tracks one open container on the walk stack: how many more
// child values (for a map, key+value both count) remain before it
// closes.
type frame struct {
	remaining int
}

func dump(u *packstream.Unpacker) error {
	var stack []*frame
	w := os.Stdout

	for {
		for len(stack) > 0 && stack[len(stack)-1].remaining == 0 {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 && !u.HasNext() {
			return u.Err()
		}

		kind, err := u.PeekNextType()
		if err != nil {
			return err
		}

		indent := indentOf(len(stack))
		isContainer := false
		childCount := 0

		switch kind {
		case packstream.KindNull:
			if err := u.UnpackNull(); err != nil {
				return err
			}
			fmt.Fprintf(w, "%sNull\n", indent)
		case packstream.KindBoolean:
			v, err := u.UnpackBoolean()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sBoolean %v\n", indent, v)
		case packstream.KindInteger:
			v, err := u.UnpackLong()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sInteger %d\n", indent, v)
		case packstream.KindFloat:
			v, err := u.UnpackDouble()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sFloat %v\n", indent, v)
		case packstream.KindBytes:
			v, err := u.UnpackBytes()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sBytes % x\n", indent, v)
		case packstream.KindString:
			v, err := u.UnpackString()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sString %q\n", indent, v)
		case packstream.KindList:
			n, err := u.UnpackListHeader()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sList(%d)\n", indent, n)
			isContainer = true
			childCount = int(n)
		case packstream.KindMap:
			n, err := u.UnpackMapHeader()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sMap(%d)\n", indent, n)
			isContainer = true
			childCount = int(n) * 2
		case packstream.KindStruct:
			n, err := u.UnpackStructHeader()
			if err != nil {
				return err
			}
			sig, err := u.UnpackStructSignature()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%sStruct(%d) %s\n", indent, n, signatureName(sig))
			isContainer = true
			childCount = int(n)
		}

		if len(stack) > 0 {
			stack[len(stack)-1].remaining--
		}
		if isContainer {
			stack = append(stack, &frame{remaining: childCount})
		}
	}
}

func indentOf(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
