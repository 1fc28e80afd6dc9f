// Package dynamotest provides a recording stand-in for the DynamoDB API so
// repositories can be tested against the exact requests they send.
package dynamotest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jobyojnahub-a11y/websevixof/internal/database"
)

// Fake records every request. The *Func hooks choose the response; a nil
// hook answers with an empty success.
type Fake struct {
	mu      sync.Mutex
	Puts    []*dynamodb.PutItemInput
	Gets    []*dynamodb.GetItemInput
	Updates []*dynamodb.UpdateItemInput
	Queries []*dynamodb.QueryInput
	Scans   []*dynamodb.ScanInput

	PutItemFunc    func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	GetItemFunc    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	UpdateItemFunc func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	QueryFunc      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	ScanFunc       func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
}

var _ database.DynamoAPI = (*Fake)(nil)

// NewDatabase wires f behind a database.Database.
func NewDatabase(f *Fake) *database.Database {
	return &database.Database{Client: database.NewDynamoDBClientFromAPI(f)}
}

// ConditionFailed is the error DynamoDB returns when a condition expression
// does not hold.
func ConditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *Fake) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	f.Puts = append(f.Puts, in)
	hook := f.PutItemFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(in)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *Fake) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	f.Gets = append(f.Gets, in)
	hook := f.GetItemFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(in)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	f.Updates = append(f.Updates, in)
	hook := f.UpdateItemFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(in)
	}
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{}}, nil
}

func (f *Fake) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, in)
	hook := f.QueryFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(in)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (f *Fake) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	f.Scans = append(f.Scans, in)
	hook := f.ScanFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(in)
	}
	return &dynamodb.ScanOutput{}, nil
}

func (f *Fake) ListTables(ctx context.Context, in *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return &dynamodb.ListTablesOutput{}, nil
}

func (f *Fake) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *Fake) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

// LastUpdate returns the most recent UpdateItem request, or nil.
func (f *Fake) LastUpdate() *dynamodb.UpdateItemInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Updates) == 0 {
		return nil
	}
	return f.Updates[len(f.Updates)-1]
}

// Resolve replaces every #name alias in expr with its attribute name, so
// assertions can be written against readable expressions. Values stay as
// :v placeholders.
func Resolve(expr string, names map[string]string) string {
	placeholders := make([]string, 0, len(names))
	for placeholder := range names {
		placeholders = append(placeholders, placeholder)
	}
	// Longer aliases first so #n1 does not clobber #n12.
	sort.Slice(placeholders, func(i, j int) bool { return len(placeholders[i]) > len(placeholders[j]) })

	pairs := make([]string, 0, len(names)*2)
	for _, placeholder := range placeholders {
		pairs = append(pairs, placeholder, names[placeholder])
	}
	return strings.NewReplacer(pairs...).Replace(expr)
}
