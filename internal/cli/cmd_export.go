package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/calvinalkan/recfile/pkg/recfile/recmetrics"
)

var errOutputRequired = errors.New("output path is required")

// dumpRecord is one line of a dump. Data is base64 encoded by encoding/json.
type dumpRecord struct {
	Index    int64  `json:"index"`
	Length   int    `json:"length"`
	Capacity uint32 `json:"capacity"`
	Data     []byte `json:"data"`
}

func newDumpCmd(s *session) *Command {
	return &Command{
		Usage: "dump <output.jsonl>",
		Short: "Export all records as JSON lines",
		Long: `Export all records as JSON lines, one object per record with its index,
length, capacity and base64 data. The output file is replaced atomically.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errOutputRequired
			}

			if len(args) > 1 {
				return errTooManyArgs
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			var buf bytes.Buffer

			enc := json.NewEncoder(&buf)

			for index := range st.Len() {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				capacity, err := st.Capacity(index)
				if err != nil {
					return err
				}

				data, err := st.GetBytes(index)
				if err != nil {
					return err
				}

				err = enc.Encode(dumpRecord{Index: index, Length: len(data), Capacity: capacity, Data: data})
				if err != nil {
					return fmt.Errorf("encode record %d: %w", index, err)
				}
			}

			out := s.resolve(args[0])

			err = atomic.WriteFile(out, &buf)
			if err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			o.Printf("dumped %d records to %s\n", st.Len(), out)

			return nil
		},
	}
}

func newMetricsCmd(s *session) *Command {
	return &Command{
		Usage: "metrics",
		Short: "Print store metrics in Prometheus text format",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()

			err = reg.Register(recmetrics.NewCollector(st, filepath.Base(st.Path())))
			if err != nil {
				return fmt.Errorf("register collector: %w", err)
			}

			families, err := reg.Gather()
			if err != nil {
				return fmt.Errorf("gather metrics: %w", err)
			}

			var text strings.Builder

			for _, mf := range families {
				_, err = expfmt.MetricFamilyToText(&text, mf)
				if err != nil {
					return fmt.Errorf("format metrics: %w", err)
				}
			}

			o.Printf("%s", text.String())

			return nil
		},
	}
}
