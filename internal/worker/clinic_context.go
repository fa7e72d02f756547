// Package worker provides background job processing for the billing engine.
//
// Jobs carry a clinic_id. Before a processor runs, the worker injects the
// clinic and acting principal into the context the same way the HTTP
// middleware does, so downstream code resolves scope identically on both
// paths.
package worker

import (
	"context"

	"github.com/google/uuid"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// jobContext attaches the job's clinic and the worker actor to ctx. Only
// the clinic ID is carried; processors that need display fields load the
// full clinic row themselves.
func jobContext(ctx context.Context, job *domain.Job) context.Context {
	if job.ClinicID != uuid.Nil {
		ctx = domain.NewContextWithClinic(ctx, &domain.Clinic{ID: job.ClinicID})
	}
	return domain.NewContextWithActor(ctx, domain.ActorWorker)
}
