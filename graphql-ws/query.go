package graphqlws

import (
	"fmt"
	"strings"
)

// OperationKind classifies the root operation of a GraphQL document.
type OperationKind int

const (
	KindUnknown OperationKind = iota
	KindQuery
	KindMutation
	KindSubscription
)

// OperationKindOf determines the operation kind from the leading keyword of
// the query text. A bare selection set is a query.
func OperationKindOf(query string) OperationKind {
	q := strings.TrimSpace(query)
	switch {
	case q == "":
		return KindUnknown
	case strings.HasPrefix(q, "{"):
		return KindQuery
	case strings.HasPrefix(q, "query"):
		return KindQuery
	case strings.HasPrefix(q, "mutation"):
		return KindMutation
	case strings.HasPrefix(q, "subscription"):
		return KindSubscription
	default:
		return KindUnknown
	}
}

// ExtractSubscriptionField extracts the root field name from a subscription
// query and passes through payload.Variables as the field arguments. It does
// NOT parse inline arguments from the query text; resolvers needing those
// should declare them as variables.
func ExtractSubscriptionField(payload SubscribePayload) (string, map[string]interface{}, error) {
	query := strings.TrimSpace(payload.Query)

	// Strip "subscription" or "subscription Name($vars)" prefix
	if strings.HasPrefix(strings.ToLower(query), "subscription") {
		query = strings.TrimSpace(query[len("subscription"):])
		if len(query) > 0 && query[0] != '{' {
			idx := strings.IndexByte(query, '{')
			if idx < 0 {
				return "", nil, fmt.Errorf("malformed subscription query")
			}
			query = query[idx:]
		}
	}

	// Strip outer braces
	query = strings.TrimSpace(query)
	if len(query) < 2 || query[0] != '{' {
		return "", nil, fmt.Errorf("malformed subscription query")
	}
	query = strings.TrimSpace(query[1:])

	// Extract field name (up to '(' or '{' or whitespace)
	fieldEnd := len(query)
	for i, ch := range query {
		if ch == '(' || ch == '{' || ch == ' ' || ch == '\n' || ch == '\t' || ch == '}' {
			fieldEnd = i
			break
		}
	}
	fieldName := query[:fieldEnd]
	if fieldName == "" {
		return "", nil, fmt.Errorf("empty subscription field name")
	}

	args := make(map[string]interface{})
	for k, v := range payload.Variables {
		args[k] = v
	}

	return fieldName, args, nil
}
