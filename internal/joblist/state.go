package joblist

import (
	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"
)

// State is the listing view the presentation layer renders.
type State struct {
	Actor         string             `json:"actor"`
	AllJobs       []models.JobRecord `json:"all_jobs"`
	JobsByActor   []models.JobRecord `json:"jobs_by_actor"`
	NextJobIDSeed int                `json:"next_job_id_seed"`

	// Latest issued refresh per collection; results from older ones are dropped.
	allIssued   uint64
	actorIssued uint64
}

func initialState() State {
	return State{AllJobs: []models.JobRecord{}, JobsByActor: []models.JobRecord{}}
}

func (s State) clone() State {
	out := s
	out.AllJobs = append([]models.JobRecord{}, s.AllJobs...)
	out.JobsByActor = append([]models.JobRecord{}, s.JobsByActor...)
	return out
}

func beginAllRefresh(s State) (State, uint64) {
	s.allIssued++
	return s, s.allIssued
}

func beginActorRefresh(s State) (State, uint64) {
	s.actorIssued++
	return s, s.actorIssued
}

func applyAllJobs(s State, generation uint64, jobs []models.JobRecord) (State, bool) {
	if generation != s.allIssued {
		return s, false
	}
	s.AllJobs = nonNil(jobs)
	s.NextJobIDSeed = len(s.AllJobs)
	return s, true
}

// applyJobsByActor keeps only records posted by actor, and drops the result if
// the identity changed since it was issued.
func applyJobsByActor(s State, generation uint64, actor string, jobs []models.JobRecord) (State, bool) {
	if generation != s.actorIssued || !sameActor(actor, s.Actor) {
		return s, false
	}
	s.JobsByActor = ownedBy(actor, jobs)
	return s, true
}

// applyIdentity switches the actor. A new actor starts with an empty personal
// listing and invalidates any by-actor refresh still in flight.
func applyIdentity(s State, actor string) State {
	if sameActor(actor, s.Actor) {
		s.Actor = actor
		return s
	}
	s.Actor = actor
	s.JobsByActor = []models.JobRecord{}
	s.actorIssued++
	return s
}

// recordSubmitted adds a confirmed job ahead of the next refresh. In-flight
// all-jobs refreshes were issued before the job existed, so they are invalidated.
func recordSubmitted(s State, job models.JobRecord) State {
	all := make([]models.JobRecord, 0, len(s.AllJobs)+1)
	all = append(all, s.AllJobs...)
	s.AllJobs = append(all, job)
	s.NextJobIDSeed = len(s.AllJobs)
	s.allIssued++
	if sameActor(job.Client, s.Actor) {
		mine := make([]models.JobRecord, 0, len(s.JobsByActor)+1)
		mine = append(mine, s.JobsByActor...)
		s.JobsByActor = append(mine, job)
	}
	return s
}

func sameActor(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return ledger.SameAddress(a, b)
}

func ownedBy(actor string, jobs []models.JobRecord) []models.JobRecord {
	out := make([]models.JobRecord, 0, len(jobs))
	if actor == "" {
		return out
	}
	for _, j := range jobs {
		if ledger.SameAddress(j.Client, actor) {
			out = append(out, j)
		}
	}
	return out
}

func nonNil(jobs []models.JobRecord) []models.JobRecord {
	if jobs == nil {
		return []models.JobRecord{}
	}
	return jobs
}

func containsID(jobs []models.JobRecord, id uint64) bool {
	for _, j := range jobs {
		if j.JobID == id {
			return true
		}
	}
	return false
}
