package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"ytplan/internal/apperr"
	"ytplan/internal/plan"
)

// ParseParticipants converts the participants setting into an ordered list.
//
// Accepted forms:
//
//	Alice=alice@example.com,Bob                # environment
//	{"Alice": "alice@example.com", "Bob": ""}  # JSON object, single quotes allowed
//	- {name: Alice, email: alice@example.com}  # config file list
//	- Bob=bob@example.com
func ParseParticipants(raw any) ([]plan.Participant, error) {
	var out []plan.Participant
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "{") {
			return parseObject(s)
		}
		if s == "" {
			return nil, nil
		}
		for _, part := range strings.Split(s, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			p, err := parsePair(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	case []string:
		for _, part := range v {
			p, err := parsePair(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	case []any:
		for i, elem := range v {
			p, err := parseElem(elem)
			if err != nil {
				return nil, apperr.Configf("participants", "entry %d: %v", i+1, err)
			}
			out = append(out, p)
		}
	default:
		return nil, apperr.Configf("participants", "unsupported value of type %T (use a list)", raw)
	}
	return out, nil
}

func parsePair(s string) (plan.Participant, error) {
	name, email, _ := strings.Cut(s, "=")
	p := plan.Participant{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if p.Name == "" {
		return p, apperr.Configf("participants", "empty name in %q", s)
	}
	return p, nil
}

func parseElem(elem any) (plan.Participant, error) {
	switch e := elem.(type) {
	case string:
		return parsePair(e)
	case map[string]any:
		name, _ := e["name"].(string)
		email, _ := e["email"].(string)
		if strings.TrimSpace(name) == "" {
			return plan.Participant{}, fmt.Errorf("missing name")
		}
		return plan.Participant{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}, nil
	case map[any]any:
		m := make(map[string]any, len(e))
		for k, val := range e {
			m[fmt.Sprint(k)] = val
		}
		return parseElem(m)
	}
	return plan.Participant{}, fmt.Errorf("unsupported entry of type %T", elem)
}

// parseObject decodes a name to email object keeping key order.
func parseObject(s string) ([]plan.Participant, error) {
	if !strings.Contains(s, `"`) {
		s = strings.ReplaceAll(s, "'", `"`)
	}
	dec := json.NewDecoder(strings.NewReader(s))
	invalid := func(err error) error {
		return apperr.Configf("participants", "invalid object: %v", err)
	}
	if _, err := dec.Token(); err != nil {
		return nil, invalid(err)
	}
	var out []plan.Participant
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, invalid(err)
		}
		name, _ := tok.(string)
		var email string
		if err := dec.Decode(&email); err != nil {
			return nil, invalid(err)
		}
		if strings.TrimSpace(name) == "" {
			return nil, apperr.Configf("participants", "empty name in object")
		}
		out = append(out, plan.Participant{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, invalid(err)
	}
	return out, nil
}
