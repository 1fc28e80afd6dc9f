package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Update accumulates an UpdateItem request. Every attribute name and value
// is aliased, so reserved words and arbitrary map keys are safe.
type Update struct {
	sets   []string
	adds   []string
	conds  []string
	names  map[string]string
	alias  map[string]string
	values map[string]types.AttributeValue
	err    error
}

func NewUpdate() *Update {
	return &Update{
		names:  make(map[string]string),
		alias:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

func (u *Update) name(attr string) string {
	if placeholder, ok := u.alias[attr]; ok {
		return placeholder
	}
	placeholder := fmt.Sprintf("#n%d", len(u.alias))
	u.alias[attr] = placeholder
	u.names[placeholder] = attr
	return placeholder
}

func (u *Update) path(attrs ...string) string {
	parts := make([]string, len(attrs))
	for i, attr := range attrs {
		parts[i] = u.name(attr)
	}
	return strings.Join(parts, ".")
}

func (u *Update) value(v interface{}) string {
	av, ok := v.(types.AttributeValue)
	if !ok {
		marshalled, err := attributevalue.Marshal(v)
		if err != nil && u.err == nil {
			u.err = fmt.Errorf("marshal update value: %w", err)
		}
		av = marshalled
	}
	placeholder := fmt.Sprintf(":v%d", len(u.values))
	u.values[placeholder] = av
	return placeholder
}

func (u *Update) Set(attr string, v interface{}) *Update {
	u.sets = append(u.sets, fmt.Sprintf("%s = %s", u.name(attr), u.value(v)))
	return u
}

// SetPath sets a nested map entry, e.g. SetPath(v, "scrollDepth", "/pricing").
func (u *Update) SetPath(v interface{}, attrs ...string) *Update {
	u.sets = append(u.sets, fmt.Sprintf("%s = %s", u.path(attrs...), u.value(v)))
	return u
}

// SetIfNotExists writes v only when the attribute is absent.
func (u *Update) SetIfNotExists(attr string, v interface{}) *Update {
	n := u.name(attr)
	u.sets = append(u.sets, fmt.Sprintf("%s = if_not_exists(%s, %s)", n, n, u.value(v)))
	return u
}

// Append appends items to a list attribute, creating it when missing.
func (u *Update) Append(attr string, items interface{}) *Update {
	n := u.name(attr)
	empty := u.value(&types.AttributeValueMemberL{Value: []types.AttributeValue{}})
	u.sets = append(u.sets, fmt.Sprintf("%s = list_append(if_not_exists(%s, %s), %s)", n, n, empty, u.value(items)))
	return u
}

// Add atomically increments a numeric attribute.
func (u *Update) Add(attr string, delta int64) *Update {
	u.adds = append(u.adds, fmt.Sprintf("%s %s", u.name(attr), u.value(N(delta))))
	return u
}

func (u *Update) IfExists(attr string) *Update {
	u.conds = append(u.conds, fmt.Sprintf("attribute_exists(%s)", u.name(attr)))
	return u
}

func (u *Update) IfEqual(attr string, v interface{}) *Update {
	u.conds = append(u.conds, fmt.Sprintf("%s = %s", u.name(attr), u.value(v)))
	return u
}

func (u *Update) IfNotEqual(attr string, v interface{}) *Update {
	u.conds = append(u.conds, fmt.Sprintf("%s <> %s", u.name(attr), u.value(v)))
	return u
}

// Expression renders the update and condition expressions.
func (u *Update) Expression() (update string, condition string, err error) {
	if u.err != nil {
		return "", "", u.err
	}
	var clauses []string
	if len(u.sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(u.sets, ", "))
	}
	if len(u.adds) > 0 {
		clauses = append(clauses, "ADD "+strings.Join(u.adds, ", "))
	}
	if len(clauses) == 0 {
		return "", "", fmt.Errorf("empty update")
	}
	return strings.Join(clauses, " "), strings.Join(u.conds, " AND "), nil
}

// Apply executes the update against tableName and decodes the new item into
// out when it is non-nil.
func (c *DynamoDBClient) Apply(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	u *Update,
	out interface{},
) error {
	updateExpr, condExpr, err := u.Expression()
	if err != nil {
		return fmt.Errorf("update item %s: %w", tableName, err)
	}
	return c.UpdateItemIf(ctx, tableName, key, updateExpr, condExpr, u.values, u.names, out)
}
