package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/debemdeboas/composer/internal/auth"
	"github.com/debemdeboas/composer/internal/remote"
)

type Payload struct {
	Title       string          `json:"title"`
	ContentHTML string          `json:"content_html"`
	ContentJSON json.RawMessage `json:"content_json"`
}

type Submitter interface {
	Submit(ctx context.Context, p Payload) error
}

// HTTPSubmitter posts the payload to the publish endpoint. With a signer set, the
// exact request body is signed into the X-Signature header.
type HTTPSubmitter struct {
	remote *remote.Client
	signer *auth.Signer
}

func NewHTTPSubmitter(endpoint string, timeout time.Duration, signer *auth.Signer) *HTTPSubmitter {
	return &HTTPSubmitter{
		remote: remote.NewClient(endpoint, timeout),
		signer: signer,
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, p Payload) error {
	_, err := s.remote.Post(ctx, p, func(req *http.Request, body []byte) error {
		if s.signer != nil {
			req.Header.Set(auth.SignatureHeader, s.signer.Sign(body))
		}
		return nil
	})
	return err
}
