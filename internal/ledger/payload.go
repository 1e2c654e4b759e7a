package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/efreitasn/commandledger/internal/domain"
)

var commandIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

var errInvalidCommandID = &domain.ValidationError{Message: "command_id must match ^[a-zA-Z0-9_.:-]{1,128}$"}

// AddCommandPayload is the validated input of add_command.
type AddCommandPayload struct {
	CommandID       string
	NameProduct     string
	IsSell          bool
	AmountProduct   domain.U128
	PricePerProduct domain.U128
	Quality         *domain.Quality
}

// addCommandJSON is the wire schema of add_command. Pointer fields let
// the decoder tell a missing field from a zero value.
type addCommandJSON struct {
	CommandID       *string      `json:"command_id"`
	NameProduct     *string      `json:"name_product"`
	IsSell          *bool        `json:"is_sell"`
	AmountProduct   *domain.U128 `json:"amount_product"`
	PricePerProduct *domain.U128 `json:"price_per_product"`
	Quality         *QualityJSON `json:"quality"`
}

// QualityJSON is the wire form of domain.Quality.
type QualityJSON struct {
	Certificate []domain.AccountID `json:"certificate"`
	Stage       []domain.AccountID `json:"stage"`
}

// NewQualityJSON converts q for encoding; nil stays nil and present
// sequences are always encoded as arrays.
func NewQualityJSON(q *domain.Quality) *QualityJSON {
	if q == nil {
		return nil
	}
	cp := q.Clone()
	return &QualityJSON{Certificate: cp.Certificate, Stage: cp.Stage}
}

// DecodeAddCommand parses and schema-checks an add_command payload.
// Every field except quality is required; quality may be null or
// omitted. Failures match domain.ErrInvalidPayload.
func DecodeAddCommand(raw []byte) (AddCommandPayload, error) {
	var in addCommandJSON
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return AddCommandPayload{}, &domain.ValidationError{
			Message: fmt.Sprintf("malformed add_command payload: %v", err),
		}
	}

	switch {
	case in.CommandID == nil:
		return AddCommandPayload{}, &domain.ValidationError{Message: "command_id is required"}
	case in.NameProduct == nil:
		return AddCommandPayload{}, &domain.ValidationError{Message: "name_product is required"}
	case in.IsSell == nil:
		return AddCommandPayload{}, &domain.ValidationError{Message: "is_sell is required"}
	case in.AmountProduct == nil:
		return AddCommandPayload{}, &domain.ValidationError{Message: "amount_product is required"}
	case in.PricePerProduct == nil:
		return AddCommandPayload{}, &domain.ValidationError{Message: "price_per_product is required"}
	}

	p := AddCommandPayload{
		CommandID:       *in.CommandID,
		NameProduct:     *in.NameProduct,
		IsSell:          *in.IsSell,
		AmountProduct:   *in.AmountProduct,
		PricePerProduct: *in.PricePerProduct,
	}
	if in.Quality != nil {
		p.Quality = &domain.Quality{
			Certificate: in.Quality.Certificate,
			Stage:       in.Quality.Stage,
		}
	}
	return p, nil
}

// validate checks the fields that do not depend on ledger state.
func (p AddCommandPayload) validate() error {
	if !commandIDRegex.MatchString(p.CommandID) {
		return errInvalidCommandID
	}
	if p.NameProduct == "" {
		return &domain.ValidationError{Message: "name_product must not be empty"}
	}
	if p.Quality != nil {
		for _, seq := range [][]domain.AccountID{p.Quality.Certificate, p.Quality.Stage} {
			for _, a := range seq {
				if a == "" {
					return &domain.ValidationError{Message: "quality entries must be non-empty account ids"}
				}
			}
		}
	}
	return nil
}
