package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"linguaflow/internal/config"
	"linguaflow/internal/models"
	"linguaflow/internal/srs"
)

// fakeAcquisitionStore keeps records in memory and can be told to fail
// specific chunks. GetOrCreateAcquisitionRecord hands back the stored
// record itself, so ApplyReview mutates what the caller is holding;
// callers must not read pre-review fields through it afterwards.
type fakeAcquisitionStore struct {
	records    map[string]*models.UserChunk // keyed by chunk hex
	failWrites map[string]bool              // chunk hex -> ApplyReview fails
	failLoads  map[string]bool              // chunk hex -> GetOrCreate fails
	applied    []srs.Result
}

func newFakeAcquisitionStore() *fakeAcquisitionStore {
	return &fakeAcquisitionStore{
		records:    make(map[string]*models.UserChunk),
		failWrites: make(map[string]bool),
		failLoads:  make(map[string]bool),
	}
}

func (f *fakeAcquisitionStore) GetOrCreateAcquisitionRecord(_ context.Context, learnerID string, chunkID primitive.ObjectID) (*models.UserChunk, error) {
	key := chunkID.Hex()
	if f.failLoads[key] {
		return nil, errors.New("load failed")
	}
	if rec, ok := f.records[key]; ok {
		return rec, nil
	}
	initial := srs.NewItemState()
	rec := &models.UserChunk{
		RecordID:    fmt.Sprintf("rec-%s", key),
		LearnerID:   learnerID,
		ChunkID:     chunkID,
		Status:      initial.Status,
		EaseFactor:  initial.EaseFactor,
		Interval:    initial.Interval,
		Repetitions: initial.Repetitions,
	}
	f.records[key] = rec
	return rec, nil
}

func (f *fakeAcquisitionStore) ApplyReview(_ context.Context, recordID string, res srs.Result, correct, firstTry, usedHelp bool, confidence float64, now time.Time) error {
	for key, rec := range f.records {
		if rec.RecordID != recordID {
			continue
		}
		if f.failWrites[key] {
			return errors.New("write failed")
		}
		rec.Status = res.Status
		rec.EaseFactor = res.EaseFactor
		rec.Interval = res.Interval
		rec.Repetitions = res.Repetitions
		rec.NextReviewDate = res.NextReviewDate
		f.applied = append(f.applied, res)
		return nil
	}
	return ErrChunkNotFound
}

// fakeProfileCounters records status transitions.
type fakeProfileCounters struct {
	transitions []string
}

func (f *fakeProfileCounters) ApplyStatusTransition(_ context.Context, _ string, from, to models.AcquisitionStatus) error {
	f.transitions = append(f.transitions, string(from)+"->"+string(to))
	return nil
}

func testTuningStore() *config.TuningStore {
	return config.NewTuningStore(config.DefaultTuning())
}

func TestRecordBatchToleratesPartialFailure(t *testing.T) {
	store := newFakeAcquisitionStore()
	counters := &fakeProfileCounters{}
	svc := NewEncounterService(store, counters, testTuningStore())

	ids := make([]primitive.ObjectID, 5)
	encounters := make([]Encounter, 5)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
		encounters[i] = Encounter{ChunkID: ids[i], Correct: true, FirstTry: true}
	}
	store.failWrites[ids[2].Hex()] = true

	result := svc.RecordBatch(context.Background(), "learner-1", encounters, time.Now())

	if result.Updated != 4 {
		t.Errorf("Updated = %d, want 4", result.Updated)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if len(result.FailedIDs) != 1 || result.FailedIDs[0] != ids[2].Hex() {
		t.Errorf("FailedIDs = %v, want [%s]", result.FailedIDs, ids[2].Hex())
	}
}

func TestRecordBatchCountsGraduations(t *testing.T) {
	store := newFakeAcquisitionStore()
	counters := &fakeProfileCounters{}
	svc := NewEncounterService(store, counters, testTuningStore())

	// Record on the verge of graduating: one more clean success gives
	// reps=3 with EF above the graduation bar.
	chunkID := primitive.NewObjectID()
	store.records[chunkID.Hex()] = &models.UserChunk{
		RecordID:    "rec-edge",
		LearnerID:   "learner-1",
		ChunkID:     chunkID,
		Status:      models.StatusLearning,
		EaseFactor:  2.7,
		Interval:    3,
		Repetitions: 2,
	}

	result := svc.RecordBatch(context.Background(), "learner-1",
		[]Encounter{{ChunkID: chunkID, Correct: true, FirstTry: true}}, time.Now())

	if result.Updated != 1 || result.Graduated != 1 {
		t.Fatalf("result = %+v, want Updated=1 Graduated=1", result)
	}
	if got := store.records[chunkID.Hex()].Status; got != models.StatusAcquired {
		t.Errorf("status = %s, want %s", got, models.StatusAcquired)
	}
	if len(counters.transitions) != 1 || counters.transitions[0] != "learning->acquired" {
		t.Errorf("transitions = %v, want [learning->acquired]", counters.transitions)
	}
}

func TestRecordBatchCountsDemotions(t *testing.T) {
	store := newFakeAcquisitionStore()
	counters := &fakeProfileCounters{}
	svc := NewEncounterService(store, counters, testTuningStore())

	chunkID := primitive.NewObjectID()
	store.records[chunkID.Hex()] = &models.UserChunk{
		RecordID:    "rec-acq",
		LearnerID:   "learner-1",
		ChunkID:     chunkID,
		Status:      models.StatusAcquired,
		EaseFactor:  2.5,
		Interval:    20,
		Repetitions: 4,
	}

	result := svc.RecordBatch(context.Background(), "learner-1",
		[]Encounter{{ChunkID: chunkID, Correct: false}}, time.Now())

	if result.BecameFragile != 1 {
		t.Errorf("BecameFragile = %d, want 1", result.BecameFragile)
	}
	if got := store.records[chunkID.Hex()].Status; got != models.StatusFragile {
		t.Errorf("status = %s, want %s", got, models.StatusFragile)
	}
}

func TestRecordBatchFailedLoadIsIsolated(t *testing.T) {
	store := newFakeAcquisitionStore()
	svc := NewEncounterService(store, &fakeProfileCounters{}, testTuningStore())

	good := primitive.NewObjectID()
	bad := primitive.NewObjectID()
	store.failLoads[bad.Hex()] = true

	result := svc.RecordBatch(context.Background(), "learner-1", []Encounter{
		{ChunkID: bad, Correct: true, FirstTry: true},
		{ChunkID: good, Correct: true, FirstTry: true},
	}, time.Now())

	if result.Updated != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want Updated=1 Failed=1", result)
	}
}

func TestObservedConfidence(t *testing.T) {
	tests := []struct {
		name string
		enc  Encounter
		want float64
	}{
		{"clean first try", Encounter{Correct: true, FirstTry: true}, 1.0},
		{"correct retry", Encounter{Correct: true}, 0.7},
		{"correct with help", Encounter{Correct: true, FirstTry: true, UsedHelp: true}, 0.5},
		{"wrong", Encounter{Correct: false}, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := observedConfidence(tt.enc); got != tt.want {
				t.Errorf("observedConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}
