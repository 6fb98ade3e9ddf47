// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful SELECT query",
			operation: "SELECT",
			table:     "persons",
			duration:  10 * time.Millisecond,
		},
		{
			name:      "successful INSERT query",
			operation: "INSERT",
			table:     "events",
			duration:  5 * time.Millisecond,
		},
		{
			name:      "failed query",
			operation: "UPDATE",
			table:     "trees",
			duration:  100 * time.Millisecond,
			err:       errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table))
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
			after := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table))

			wantDelta := 0.0
			if tt.err != nil {
				wantDelta = 1.0
			}
			if after-before != wantDelta {
				t.Errorf("error counter delta = %v, want %v", after-before, wantDelta)
			}
		})
	}
}

func TestRecordSyncBatch(t *testing.T) {
	before := testutil.ToFloat64(SyncBatchesTotal.WithLabelValues("applied"))
	RecordSyncBatch("applied", 42, 150*time.Millisecond)
	after := testutil.ToFloat64(SyncBatchesTotal.WithLabelValues("applied"))

	if after-before != 1 {
		t.Errorf("applied counter delta = %v, want 1", after-before)
	}
}

func TestRecordSyncPhaseSkipsZeroCounts(t *testing.T) {
	before := testutil.ToFloat64(SyncRecordsProcessed.WithLabelValues("delete"))
	RecordSyncPhase("delete", 0)
	if got := testutil.ToFloat64(SyncRecordsProcessed.WithLabelValues("delete")); got != before {
		t.Errorf("zero-count phase incremented counter: %v -> %v", before, got)
	}

	RecordSyncPhase("delete", 7)
	if got := testutil.ToFloat64(SyncRecordsProcessed.WithLabelValues("delete")); got != before+7 {
		t.Errorf("counter = %v, want %v", got, before+7)
	}
}

func TestRecordAuthAttempt(t *testing.T) {
	beforeOK := testutil.ToFloat64(AuthAttempts.WithLabelValues("login", "success"))
	beforeFail := testutil.ToFloat64(AuthAttempts.WithLabelValues("login", "failure"))

	RecordAuthAttempt("login", true)
	RecordAuthAttempt("login", false)
	RecordAuthAttempt("login", false)

	if got := testutil.ToFloat64(AuthAttempts.WithLabelValues("login", "success")); got != beforeOK+1 {
		t.Errorf("success counter = %v, want %v", got, beforeOK+1)
	}
	if got := testutil.ToFloat64(AuthAttempts.WithLabelValues("login", "failure")); got != beforeFail+2 {
		t.Errorf("failure counter = %v, want %v", got, beforeFail+2)
	}
}

func TestRecordMailSend(t *testing.T) {
	beforeSent := testutil.ToFloat64(MailSent.WithLabelValues("verification"))
	beforeFailed := testutil.ToFloat64(MailFailures.WithLabelValues("verification"))

	RecordMailSend("verification", 20*time.Millisecond, nil)
	RecordMailSend("verification", 20*time.Millisecond, errors.New("smtp: 554 rejected"))

	if got := testutil.ToFloat64(MailSent.WithLabelValues("verification")); got != beforeSent+1 {
		t.Errorf("sent counter = %v, want %v", got, beforeSent+1)
	}
	if got := testutil.ToFloat64(MailFailures.WithLabelValues("verification")); got != beforeFailed+1 {
		t.Errorf("failure counter = %v, want %v", got, beforeFailed+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+2 {
		t.Errorf("active requests = %v, want %v", got, base+2)
	}
	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base {
		t.Errorf("active requests = %v, want %v", got, base)
	}
}
