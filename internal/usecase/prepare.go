package usecase

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
)

// WriteOp is one raw operation of an incoming batch, before normalization.
type WriteOp struct {
	Action     domain.WriteAction `json:"action"`
	Collection string             `json:"collection"`
	RKey       *string            `json:"rkey,omitempty"`
	Value      json.RawMessage    `json:"value,omitempty"`
}

// PrepareBatch normalizes a whole batch or rejects it whole. The size
// bound is enforced before any store interaction.
func PrepareBatch(did string, ops []WriteOp, validate bool) ([]domain.PreparedWrite, error) {
	if len(ops) > domain.MaxWrites {
		return nil, domain.RecordInvalidError{Reason: "too many writes, max: " + strconv.Itoa(domain.MaxWrites)}
	}

	writes := make([]domain.PreparedWrite, 0, len(ops))
	for _, op := range ops {
		var (
			write domain.PreparedWrite
			err   error
		)
		switch op.Action {
		case domain.WriteActionCreate:
			write, err = PrepareCreate(did, op.Collection, op.RKey, op.Value, validate)
		case domain.WriteActionUpdate:
			write, err = PrepareUpdate(did, op.Collection, op.RKey, op.Value, validate)
		case domain.WriteActionDelete:
			write, err = PrepareDelete(did, op.Collection, op.RKey)
		default:
			err = domain.RecordInvalidError{Reason: "unknown write action: " + string(op.Action)}
		}
		if err != nil {
			return nil, err
		}
		writes = append(writes, write)
	}
	return writes, nil
}

// PrepareCreate normalizes a create. A missing record key is generated
// deterministically from the record content, so regenerating an unsigned
// commit between the two signing phases yields identical bytes.
func PrepareCreate(did, collection string, rkey *string, record json.RawMessage, validate bool) (domain.PreparedWrite, error) {
	canonical, err := canonicalRecordBytes(record)
	if err != nil {
		return domain.PreparedWrite{}, err
	}
	if validate {
		if err := validateRecord(canonical, collection); err != nil {
			return domain.PreparedWrite{}, err
		}
	}

	key := generateRKey(did, collection, canonical)
	if rkey != nil && *rkey != "" {
		key = *rkey
	}

	return domain.PreparedWrite{
		Action:     domain.WriteActionCreate,
		DID:        did,
		Collection: collection,
		RKey:       key,
		Record:     canonical,
		CID:        web5.NewCID(canonical),
		URI:        recordURI(did, collection, key),
		Validated:  validate,
	}, nil
}

// PrepareUpdate normalizes an update. The record key is required.
func PrepareUpdate(did, collection string, rkey *string, record json.RawMessage, validate bool) (domain.PreparedWrite, error) {
	if rkey == nil || *rkey == "" {
		return domain.PreparedWrite{}, domain.KeyRequiredError{}
	}

	canonical, err := canonicalRecordBytes(record)
	if err != nil {
		return domain.PreparedWrite{}, err
	}
	if validate {
		if err := validateRecord(canonical, collection); err != nil {
			return domain.PreparedWrite{}, err
		}
	}

	return domain.PreparedWrite{
		Action:     domain.WriteActionUpdate,
		DID:        did,
		Collection: collection,
		RKey:       *rkey,
		Record:     canonical,
		CID:        web5.NewCID(canonical),
		URI:        recordURI(did, collection, *rkey),
		Validated:  validate,
	}, nil
}

// PrepareDelete normalizes a delete. The record key is required.
func PrepareDelete(did, collection string, rkey *string) (domain.PreparedWrite, error) {
	if rkey == nil || *rkey == "" {
		return domain.PreparedWrite{}, domain.KeyRequiredError{}
	}
	return domain.PreparedWrite{
		Action:     domain.WriteActionDelete,
		DID:        did,
		Collection: collection,
		RKey:       *rkey,
		URI:        recordURI(did, collection, *rkey),
	}, nil
}

// canonicalRecordBytes compacts the raw JSON so the content identifier is
// stable across clients with different whitespace habits.
func canonicalRecordBytes(record json.RawMessage) (json.RawMessage, error) {
	if len(record) == 0 {
		return nil, domain.RecordInvalidError{Reason: "record payload is empty"}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, record); err != nil {
		return nil, errors.Wrap(domain.RecordInvalidError{Reason: "record is not valid json"}, err.Error())
	}
	return buf.Bytes(), nil
}

// validateRecord checks the record's declared shape: a JSON object whose
// $type matches the target collection. Skipping validation is reserved
// for trusted callers.
func validateRecord(canonical json.RawMessage, collection string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(canonical, &obj); err != nil {
		return domain.RecordInvalidError{Reason: "record must be a json object"}
	}
	rawType, ok := obj["$type"]
	if !ok {
		return domain.RecordInvalidError{Reason: "record is missing $type"}
	}
	var declared string
	if err := json.Unmarshal(rawType, &declared); err != nil {
		return domain.RecordInvalidError{Reason: "record $type must be a string"}
	}
	if declared != collection {
		return domain.RecordInvalidError{Reason: "record $type does not match collection " + collection}
	}
	return nil
}

func generateRKey(did, collection string, canonical []byte) string {
	h := xxh3.HashString(did + "/" + collection + "/" + string(canonical))
	return strconv.FormatUint(h, 36)
}

func recordURI(did, collection, rkey string) string {
	return "web5://" + did + "/" + collection + "/" + rkey
}
