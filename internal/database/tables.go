package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableSpec describes a table with string-typed keys. RangeKey is optional.
type TableSpec struct {
	Name     string
	HashKey  string
	RangeKey string
}

// TableStatus is what `chatctl tables list` prints per table.
type TableStatus struct {
	Name      string
	Status    string
	ItemCount int64
}

const tableWaitTimeout = 2 * time.Minute

// EnsureTables creates every missing table in on-demand billing mode and
// waits until each one is ACTIVE. Existing tables are left untouched.
func (c *DynamoDBClient) EnsureTables(ctx context.Context, specs []TableSpec) ([]string, error) {
	existing, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		have[name] = struct{}{}
	}

	var created []string
	for _, spec := range specs {
		if _, ok := have[spec.Name]; ok {
			continue
		}
		if err := c.createTable(ctx, spec); err != nil {
			return created, err
		}
		created = append(created, spec.Name)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.svc)
	for _, name := range created {
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableWaitTimeout); err != nil {
			return created, fmt.Errorf("wait for table %s: %w", name, err)
		}
	}
	return created, nil
}

func (c *DynamoDBClient) createTable(ctx context.Context, spec TableSpec) error {
	if spec.Name == "" || spec.HashKey == "" {
		return errors.New("table spec requires name and hash key")
	}

	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(spec.HashKey), AttributeType: types.ScalarAttributeTypeS},
	}
	schema := []types.KeySchemaElement{
		{AttributeName: aws.String(spec.HashKey), KeyType: types.KeyTypeHash},
	}
	if spec.RangeKey != "" {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: aws.String(spec.RangeKey), AttributeType: types.ScalarAttributeTypeS})
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(spec.RangeKey), KeyType: types.KeyTypeRange})
	}

	_, err := c.svc.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(spec.Name),
		AttributeDefinitions: attrs,
		KeySchema:            schema,
		BillingMode:          types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// ListTables returns all table names in the account/endpoint.
func (c *DynamoDBClient) ListTables(ctx context.Context) ([]string, error) {
	var last *string
	var names []string

	for {
		out, err := c.svc.ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: last,
			Limit:                   aws.Int32(100),
		})
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}

		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		last = out.LastEvaluatedTableName
	}

	return names, nil
}

func (c *DynamoDBClient) DescribeTables(ctx context.Context, names []string) ([]TableStatus, error) {
	statuses := make([]TableStatus, 0, len(names))
	for _, name := range names {
		out, err := c.svc.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err != nil {
			if errors.Is(classify(err), ErrTableNotFound) {
				statuses = append(statuses, TableStatus{Name: name, Status: "MISSING"})
				continue
			}
			return nil, fmt.Errorf("describe table %s: %w", name, err)
		}
		statuses = append(statuses, TableStatus{
			Name:      name,
			Status:    string(out.Table.TableStatus),
			ItemCount: aws.ToInt64(out.Table.ItemCount),
		})
	}
	return statuses, nil
}
