package codec

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/kapu/namedivider-go/internal/constants"
	"github.com/kapu/namedivider-go/internal/domain"
	"github.com/kapu/namedivider-go/internal/util"
	"github.com/kapu/namedivider-go/pkg/errors"
)

const dividedNamesKey = "divided_names"

// requiredFields lists every key a divided name must carry together with the
// JSON type its value must have.
var requiredFields = []struct {
	key  string
	kind gjson.Type
}{
	{"family", gjson.String},
	{"given", gjson.String},
	{"separator", gjson.String},
	{"score", gjson.Number},
	{"algorithm", gjson.String},
}

func EncodeRequest(req domain.DivideRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewValidationError("failed to marshal request", "request", nil).WithCause(err)
	}
	return body, nil
}

// DecodeResponse parses a /divide body. It does not compare the result length
// with the request; callers holding the request do that.
func DecodeResponse(body []byte) (*domain.DivideResponse, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}

	list := root.Get(dividedNamesKey)
	if !list.Exists() {
		return nil, errors.NewProtocolError("response is missing divided_names", map[string]any{
			"body": truncate(body),
		}, nil)
	}
	if !list.IsArray() {
		return nil, errors.NewProtocolError("divided_names is not an array", map[string]any{
			"type": list.Type.String(),
		}, nil)
	}

	items := list.Array()
	names := make([]domain.DividedName, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, errors.NewProtocolError("divided name is not an object", map[string]any{
				"index": i,
			}, nil)
		}
		for _, f := range requiredFields {
			v := item.Get(f.key)
			if !v.Exists() {
				return nil, errors.NewProtocolError(
					fmt.Sprintf("divided name is missing %q", f.key),
					map[string]any{"index": i, "field": f.key},
					nil,
				)
			}
			if v.Type != f.kind {
				return nil, errors.NewProtocolError(
					fmt.Sprintf("divided name field %q has type %s, want %s", f.key, v.Type, f.kind),
					map[string]any{"index": i, "field": f.key},
					nil,
				)
			}
		}
		score := item.Get("score").Float()
		if math.IsInf(score, 0) || math.IsNaN(score) {
			return nil, errors.NewProtocolError("divided name score is not a finite number", map[string]any{
				"index": i,
				"raw":   item.Get("score").Raw,
			}, nil)
		}
		names[i] = domain.DividedName{
			Family:    item.Get("family").String(),
			Given:     item.Get("given").String(),
			Separator: item.Get("separator").String(),
			Score:     score,
			Algorithm: item.Get("algorithm").String(),
		}
	}

	return &domain.DivideResponse{DividedNames: names}, nil
}

func DecodeHealth(body []byte) (*domain.HealthStatus, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	health := root.Get("health")
	if health.Type != gjson.String {
		return nil, errors.NewProtocolError("health response is missing health", map[string]any{
			"body": truncate(body),
		}, nil)
	}
	return &domain.HealthStatus{Health: health.String()}, nil
}

func parseObject(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.NewProtocolError("malformed JSON", map[string]any{
			"body": truncate(body),
		}, nil)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, errors.NewProtocolError("response is not a JSON object", map[string]any{
			"type": root.Type.String(),
		}, nil)
	}
	return root, nil
}

func truncate(body []byte) string {
	return util.TruncateString(string(body), constants.StringLimits.ProtocolErrorBody)
}
