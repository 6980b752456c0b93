package upload

import (
	"context"
	"log"

	"dater/backend/internal/bus"
	"dater/backend/internal/models"
)

// Service bridges captured selfies to the negotiation engines: it starts an
// upload for every captured photo and republishes the terminal success as
// the uploaded trigger the engines listen for. Upload failures are logged
// and dropped; the user retakes the selfie.
type Service struct {
	Bus      *bus.Service
	Uploader Uploader
}

// NewService Constructor
func NewService(b *bus.Service, u Uploader) *Service {
	return &Service{Bus: b, Uploader: u}
}

// Run consumes capture triggers until the context ends.
func (s *Service) Run(ctx context.Context) {
	log.Println("Selfie upload saga started.")

	sub := s.Bus.Subscribe(models.IntentSelfieCaptured)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case intent, ok := <-sub.C():
			if !ok {
				return
			}
			go s.runUpload(ctx, intent)
		}
	}
}

func (s *Service) runUpload(ctx context.Context, intent models.Intent) {
	progress := s.Uploader.Start(intent.SessionID, intent.PhotoURI)
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-progress:
			if !ok {
				return
			}
			if p.Err != nil {
				log.Printf("ERROR: upload: selfie upload for %s failed: %v", intent.SessionID, p.Err)
				return
			}
			if p.Done {
				s.Bus.Publish(models.Intent{
					Kind:     models.IntentSelfieUploaded,
					PhotoURI: p.RemoteRef,
				})
				return
			}
		}
	}
}

// DirectUploader treats the local ref as already remote: the mobile client
// uploads the photo itself and sends the final URI.
// TODO: replace with a blob store client once selfies go through the backend.
type DirectUploader struct{}

func (DirectUploader) Start(sessionID, localRef string) <-chan Progress {
	ch := make(chan Progress, 1)
	ch <- Progress{Fraction: 1, Done: true, RemoteRef: localRef}
	close(ch)
	return ch
}
