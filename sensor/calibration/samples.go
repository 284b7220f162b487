package calibration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
)

// FormatSample renders a sample the way capture files and the raw printer show it.
func FormatSample(v r3.Vector) string {
	return fmt.Sprintf("% 10.5f % 10.5f % 10.5f ", v.X, v.Y, v.Z)
}

// WriteSample appends one `x y z` line to a capture file.
func WriteSample(w io.Writer, v r3.Vector) error {
	_, err := io.WriteString(w, FormatSample(v)+"\n")
	return err
}

// ReadSamples parses a capture file: one `x y z` sample per line, blank lines ignored.
func ReadSamples(r io.Reader) ([]r3.Vector, error) {
	var samples []r3.Vector
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) != 3 {
			return nil, errors.Errorf("line %d: expected 3 values, got %d", lineNum, len(tokens))
		}
		var vals [3]float64
		for i, tok := range tokens {
			v, err := cast.ToFloat64E(tok)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			vals[i] = v
		}
		samples = append(samples, r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// ReadSamplesFile reads a capture file from disk.
func ReadSamplesFile(path string) (_ []r3.Vector, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ReadSamples(f)
}
