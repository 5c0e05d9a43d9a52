package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodeRecord = `{
	"job_id": "1002",
	"client": "0xa11ce",
	"freelancer": {"vec": ["0xb0b"]},
	"description": "Audit the escrow module",
	"payment_amount": "2500",
	"job_deadline": "1801627506",
	"is_freelancer_assigned": true,
	"is_accepted": true,
	"is_completed": false
}`

func TestMapRawToJobRecord(t *testing.T) {
	job, err := MapRawToJobRecord(json.RawMessage(nodeRecord))
	require.NoError(t, err)
	assert.Equal(t, JobRecord{
		JobID:                1002,
		Client:               "0xa11ce",
		Freelancer:           "0xb0b",
		Description:          "Audit the escrow module",
		PaymentAmount:        2500,
		JobDeadline:          1801627506,
		IsFreelancerAssigned: true,
		IsAccepted:           true,
		IsCompleted:          false,
	}, job)
	assert.Equal(t, time.Unix(1801627506, 0), job.Deadline())
}

func TestMapRawToJobRecordRoundTripsTypedRecord(t *testing.T) {
	want := JobRecord{
		JobID:                1007,
		Client:               "0xc1",
		Freelancer:           "0xf1",
		Description:          "Write docs",
		PaymentAmount:        42,
		JobDeadline:          1900000000,
		IsFreelancerAssigned: true,
		IsAccepted:           false,
		IsCompleted:          true,
	}
	raw, err := json.Marshal(want)
	require.NoError(t, err)

	got, err := MapRawToJobRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMapRawToJobRecordOptionalFreelancer(t *testing.T) {
	cases := map[string]string{
		"empty option": `{"job_id": "1", "freelancer": {"vec": []}}`,
		"null":         `{"job_id": "1", "freelancer": null}`,
		"missing":      `{"job_id": "1"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			job, err := MapRawToJobRecord(json.RawMessage(raw))
			require.NoError(t, err)
			assert.Equal(t, uint64(1), job.JobID)
			assert.Empty(t, job.Freelancer)
		})
	}
}

func TestMapRawToJobRecordRejectsWrongShapes(t *testing.T) {
	cases := map[string]string{
		"not an object":     `[1, 2]`,
		"negative id":       `{"job_id": -4}`,
		"fractional amount": `{"payment_amount": 1.5}`,
		"id not a number":   `{"job_id": "abc"}`,
		"bool as string":    `{"is_completed": "yes"}`,
		"client number":     `{"client": 12}`,
		"two freelancers":   `{"freelancer": {"vec": ["0x1", "0x2"]}}`,
		"deadline past i64": `{"job_deadline": "18446744073709551615"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := MapRawToJobRecord(json.RawMessage(raw))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestMapJobList(t *testing.T) {
	result := []json.RawMessage{json.RawMessage(`[` + nodeRecord + `,` + nodeRecord + `]`)}
	jobs, err := MapJobList(result)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestMapJobListNonSequenceIsEmpty(t *testing.T) {
	cases := map[string][]json.RawMessage{
		"nil result":   nil,
		"empty result": {},
		"object":       {json.RawMessage(`{"job_id": "1"}`)},
		"null":         {json.RawMessage(`null`)},
		"string":       {json.RawMessage(`"nothing"`)},
		"empty array":  {json.RawMessage(`[]`)},
	}
	for name, result := range cases {
		t.Run(name, func(t *testing.T) {
			jobs, err := MapJobList(result)
			require.NoError(t, err)
			require.NotNil(t, jobs)
			assert.Empty(t, jobs)
		})
	}
}

func TestMapJobListFailsClosed(t *testing.T) {
	result := []json.RawMessage{json.RawMessage(`[` + nodeRecord + `, {"job_id": true}]`)}
	jobs, err := MapJobList(result)
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestJobInputValidate(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	valid := JobInput{Description: "Build a landing page", PaymentAmount: 10, Deadline: now.Add(24 * time.Hour)}
	assert.NoError(t, valid.Validate(now))

	cases := map[string]struct {
		in    JobInput
		field string
	}{
		"blank description": {JobInput{Description: "  ", PaymentAmount: 10, Deadline: valid.Deadline}, "description"},
		"zero payment":      {JobInput{Description: "x", Deadline: valid.Deadline}, "payment_amount"},
		"past deadline":     {JobInput{Description: "x", PaymentAmount: 1, Deadline: now.Add(-time.Second)}, "job_deadline"},
		"missing deadline":  {JobInput{Description: "x", PaymentAmount: 1}, "job_deadline"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.in.Validate(now)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
