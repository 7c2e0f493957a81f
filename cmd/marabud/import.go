package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/bsv-blockchain/marabu/daemon"
	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
)

const maxObjectSize = 10 * 1024 * 1024

type objectHandler interface {
	HandleMessage(ctx context.Context, data []byte) daemon.PeerVerdict
}

// importObjects hands every non-empty line of r to node and reports each
// verdict on w. Local failures stop the import, rejected objects do not.
func importObjects(ctx context.Context, node objectHandler, r io.Reader, w io.Writer) (accepted, rejected int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxObjectSize)

	line := 0

	for scanner.Scan() {
		line++

		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		if ctx.Err() != nil {
			return accepted, rejected, errors.NewContextCanceledError("import interrupted at line %d", line, ctx.Err())
		}

		verdict := node.HandleMessage(ctx, data)

		switch {
		case verdict.OK():
			accepted++

			fmt.Fprintf(w, "%d: ok %s\n", line, idOf(data))
		case verdict.Name == "":
			return accepted, rejected, errors.NewProcessingError("line %d could not be processed", line, verdict.Err)
		default:
			rejected++

			fmt.Fprintf(w, "%d: %s %s\n", line, verdict.Name, verdict.Description)
		}
	}

	if err = scanner.Err(); err != nil {
		return accepted, rejected, errors.NewInvalidFormatError("failed to read line %d", line+1, err)
	}

	return accepted, rejected, nil
}

func idOf(data []byte) model.ObjectID {
	obj, err := model.ParseObject(data)
	if err != nil {
		return ""
	}

	return obj.ID()
}
