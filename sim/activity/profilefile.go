package activity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// ErrMalformedProfileFile is returned when a saved profile is missing fields
// or carries values that cannot be parsed.
var ErrMalformedProfileFile = errors.New("malformed profile file")

const (
	keyProfile   = "profile"
	keyStartDate = "start_date"
	keyTimeSteps = "profile_time_steps"
)

var profileFileHeader = []string{"key", "index", "value"}

// WriteTo writes the profile as CSV rows of key, index and value. There is
// one "profile" row per phase, followed by the anchor date and the step
// token.
func (p Profile) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	out := csv.NewWriter(cw)

	records := [][]string{profileFileHeader}
	for i, weight := range p.weights {
		records = append(records, []string{
			keyProfile,
			strconv.Itoa(i),
			strconv.FormatFloat(weight, 'g', -1, 64),
		})
	}

	records = append(records,
		[]string{keyStartDate, "0", p.anchor.Format(time.RFC3339Nano)},
		[]string{keyTimeSteps, "0", p.stepToken},
	)

	err := out.WriteAll(records)

	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)

	return n, err
}

// ReadProfile parses a profile written by WriteTo. Nothing is constructed
// unless every field is present and valid.
func ReadProfile(r io.Reader) (Profile, error) {
	in := csv.NewReader(r)
	in.FieldsPerRecord = len(profileFileHeader)

	records, err := in.ReadAll()
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrMalformedProfileFile, err)
	}

	if len(records) == 0 || !isHeader(records[0]) {
		return Profile{}, fmt.Errorf("%w: missing header", ErrMalformedProfileFile)
	}

	weights := make(map[int]float64)
	var anchor, token string
	var hasAnchor, hasToken bool

	for line, rec := range records[1:] {
		idx, err := strconv.Atoi(rec[1])
		if err != nil || idx < 0 {
			return Profile{}, fmt.Errorf(
				"%w: line %d: bad index %q", ErrMalformedProfileFile, line+2, rec[1])
		}

		switch rec[0] {
		case keyProfile:
			w, err := strconv.ParseFloat(rec[2], 64)
			if err != nil {
				return Profile{}, fmt.Errorf(
					"%w: line %d: bad weight %q", ErrMalformedProfileFile, line+2, rec[2])
			}

			if _, dup := weights[idx]; dup {
				return Profile{}, fmt.Errorf(
					"%w: line %d: duplicated phase %d", ErrMalformedProfileFile, line+2, idx)
			}

			weights[idx] = w
		case keyStartDate:
			anchor, hasAnchor = rec[2], true
		case keyTimeSteps:
			token, hasToken = rec[2], true
		default:
			return Profile{}, fmt.Errorf(
				"%w: line %d: unknown key %q", ErrMalformedProfileFile, line+2, rec[0])
		}
	}

	if !hasAnchor || !hasToken {
		return Profile{}, fmt.Errorf(
			"%w: missing %s or %s", ErrMalformedProfileFile, keyStartDate, keyTimeSteps)
	}

	ordered := make([]float64, len(weights))
	for i := range ordered {
		w, ok := weights[i]
		if !ok {
			return Profile{}, fmt.Errorf(
				"%w: missing phase %d", ErrMalformedProfileFile, i)
		}
		ordered[i] = w
	}

	anchorTime, err := ParseTime(anchor)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrMalformedProfileFile, err)
	}

	p, err := NewProfile(ordered, token, anchorTime)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrMalformedProfileFile, err)
	}

	return p, nil
}

func isHeader(rec []string) bool {
	for i := range profileFileHeader {
		if rec[i] != profileFileHeader[i] {
			return false
		}
	}

	return true
}

var anchorLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

// ParseTime parses an anchor or start date. Dates without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range anchorLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("bad start date %q", s)
}

// SaveTo writes the profile to a file. The file is locked while it is being
// written so that concurrent loaders never observe a partial profile.
func (p Profile) SaveTo(path string) error {
	log.Printf("saving activity profile to %s", path)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := p.WriteTo(file); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// LoadProfile reads a profile saved by SaveTo.
func LoadProfile(path string) (Profile, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return Profile{}, err
	}
	defer lock.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return Profile{}, err
	}
	defer file.Close()

	return ReadProfile(file)
}
