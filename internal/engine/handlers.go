package engine

import (
	"context"
	"log"
	"time"

	"dater/backend/internal/bus"
	"dater/backend/internal/models"
	"dater/backend/internal/storage"
)

// The handlers below are shared by both roles: the write payloads only
// differ in the actor stamp, which is the local uid. Every write is a blind
// partial merge: the supervisor keeps a handler alive only while its
// transition is valid, and the last-write-wins race on overlapping fields
// is accepted (see storage.UpdateMicroDate).

func stopHandler(s storage.Storage, id, uid string) handlerFunc {
	return func(ctx context.Context, _ models.Intent) (confirm, error) {
		md, err := s.UpdateMicroDate(id, map[string]any{
			"status":  models.StatusStop,
			"active":  false,
			"stop_by": uid,
			"stop_ts": time.Now().UTC(),
		})
		if err != nil {
			return confirm{}, err
		}
		return confirm{kind: confirmStopped, md: md}, nil
	}
}

func selfieUploadHandler(s storage.Storage, id, uid string) handlerFunc {
	return func(ctx context.Context, intent models.Intent) (confirm, error) {
		md, err := s.UpdateMicroDate(id, map[string]any{
			"status":             models.StatusSelfieUploaded,
			"selfie_uploaded_by": uid,
			"selfie_photo_uri":   intent.PhotoURI,
		})
		if err != nil {
			return confirm{}, err
		}
		return confirm{kind: confirmSelfieUploaded, md: md}, nil
	}
}

func selfieDeclineHandler(s storage.Storage, id, uid string) handlerFunc {
	return func(ctx context.Context, _ models.Intent) (confirm, error) {
		md, err := s.UpdateMicroDate(id, map[string]any{
			"status":             models.StatusSelfieDeclined,
			"declined_selfie_by": uid,
			// The exchange reopens: clear the rejected selfie.
			"selfie_uploaded_by": "",
			"selfie_photo_uri":   "",
		})
		if err != nil {
			return confirm{}, err
		}
		return confirm{kind: confirmSelfieDeclined, md: md}, nil
	}
}

func selfieApproveHandler(s storage.Storage, id, uid string) handlerFunc {
	return func(ctx context.Context, _ models.Intent) (confirm, error) {
		md, err := s.GetMicroDate(id)
		if err != nil {
			return confirm{}, err
		}

		fields := map[string]any{
			"status":            models.StatusFinished,
			"active":            false,
			"finish_by":         uid,
			"finish_ts":         time.Now().UTC(),
			"moderation_status": "PENDING",
		}
		// The finisher has seen the result; the counterpart gets the
		// first-alert replay on their next cold start.
		if uid == md.RequestBy {
			fields["request_by_first_alert"] = true
			fields["request_for_first_alert"] = false
		} else {
			fields["request_by_first_alert"] = false
			fields["request_for_first_alert"] = true
		}

		md, err = s.UpdateMicroDate(id, fields)
		if err != nil {
			return confirm{}, err
		}
		return confirm{kind: confirmSelfieApproved, md: md}, nil
	}
}

// finishObserved runs the counterpart side of a finish: navigate to the
// result screen, acknowledge the first alert and journal the past date.
// Safe to replay: the acknowledgement makes the recovery query stop
// matching, and re-running it is idempotent for the UI.
func finishObserved(s storage.Storage, b *bus.Service, uid string, md *models.MicroDate) {
	if md == nil {
		return
	}

	b.Directive(models.Directive{Kind: models.DirectiveNavigate, Screen: "MicroDateScreen", MicroDate: md})
	b.Directive(models.Directive{Kind: models.DirectiveHidePanel})

	if err := s.AcknowledgeFinished(md.ID, uid); err != nil {
		log.Printf("ERROR: engine: failed to acknowledge finished date %s: %v", md.ID, err)
	}

	finishedAt := time.Now().UTC()
	if md.FinishTS != nil {
		finishedAt = *md.FinishTS
	}
	if err := s.RecordPastMicroDate(uid, md.CounterpartID(uid), finishedAt); err != nil {
		log.Printf("ERROR: engine: failed to journal past date %s: %v", md.ID, err)
	}
}
