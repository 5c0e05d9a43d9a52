package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMalformedRecord is returned when a ledger record has a field of the wrong shape.
var ErrMalformedRecord = errors.New("malformed job record")

// MapJobList decodes the primary payload of a view result. An absent or non-array
// payload yields an empty slice. Any malformed element fails the whole set.
func MapJobList(result []json.RawMessage) ([]JobRecord, error) {
	jobs := []JobRecord{}
	if len(result) == 0 {
		return jobs, nil
	}
	payload := bytes.TrimSpace(result[0])
	if len(payload) == 0 || payload[0] != '[' {
		return jobs, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return []JobRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	for i, item := range items {
		job, err := MapRawToJobRecord(item)
		if err != nil {
			return []JobRecord{}, fmt.Errorf("record %d: %w", i, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// MapRawToJobRecord copies the nine job fields out of one raw record. Each field is
// read on its own; a missing key leaves the zero value.
func MapRawToJobRecord(raw json.RawMessage) (JobRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return JobRecord{}, fmt.Errorf("%w: not an object", ErrMalformedRecord)
	}

	var job JobRecord
	var err error
	if job.JobID, err = readU64(fields, "job_id"); err != nil {
		return JobRecord{}, err
	}
	if job.Client, err = readString(fields, "client"); err != nil {
		return JobRecord{}, err
	}
	if job.Freelancer, err = readOptionalAddress(fields, "freelancer"); err != nil {
		return JobRecord{}, err
	}
	if job.Description, err = readString(fields, "description"); err != nil {
		return JobRecord{}, err
	}
	if job.PaymentAmount, err = readU64(fields, "payment_amount"); err != nil {
		return JobRecord{}, err
	}
	deadlineSecs, err := readU64(fields, "job_deadline")
	if err != nil {
		return JobRecord{}, err
	}
	if deadlineSecs > math.MaxInt64 {
		return JobRecord{}, fieldError("job_deadline", fields["job_deadline"])
	}
	job.JobDeadline = int64(deadlineSecs)
	if job.IsFreelancerAssigned, err = readBool(fields, "is_freelancer_assigned"); err != nil {
		return JobRecord{}, err
	}
	if job.IsAccepted, err = readBool(fields, "is_accepted"); err != nil {
		return JobRecord{}, err
	}
	if job.IsCompleted, err = readBool(fields, "is_completed"); err != nil {
		return JobRecord{}, err
	}
	return job, nil
}

func fieldError(key string, raw json.RawMessage) error {
	return fmt.Errorf("%w: field %s has unexpected value %s", ErrMalformedRecord, key, string(raw))
}

func lookup(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// readU64 accepts the node's decimal-string encoding as well as plain JSON numbers.
func readU64(fields map[string]json.RawMessage, key string) (uint64, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fieldError(key, raw)
		}
		return v, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fieldError(key, raw)
	}
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, fieldError(key, raw)
	}
	return v, nil
}

func readString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fieldError(key, raw)
	}
	return s, nil
}

func readBool(fields map[string]json.RawMessage, key string) (bool, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fieldError(key, raw)
	}
	return b, nil
}

// readOptionalAddress handles both a bare address and Move's Option encoding
// ({"vec": []} or {"vec": ["0x.."]}).
func readOptionalAddress(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var opt struct {
		Vec []string `json:"vec"`
	}
	if err := json.Unmarshal(raw, &opt); err != nil || len(opt.Vec) > 1 {
		return "", fieldError(key, raw)
	}
	if len(opt.Vec) == 0 {
		return "", nil
	}
	return opt.Vec[0], nil
}
