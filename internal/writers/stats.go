// internal/writers/stats.go
package writers

import (
	"io"

	"github.com/goccy/go-json"

	"seqmap/internal/jsonlutil"
	"seqmap/pkg/api"
)

// StartJobStatsWriter streams each api.JobStatsV1 as one JSON line.
func StartJobStatsWriter(out io.Writer, bufSize int) (chan<- api.JobStatsV1, <-chan error) {
	return jsonlutil.Start[api.JobStatsV1](out, bufSize,
		func(enc *json.Encoder, s api.JobStatsV1) error {
			return enc.Encode(s)
		},
		IsBrokenPipe,
	)
}
