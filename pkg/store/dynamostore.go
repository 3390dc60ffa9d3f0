package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cloudtrim/engine/pkg/model"
)

// DynamoStore is a ResourceStore backed by one DynamoDB table per
// resource table, partitioned by account_id and keyed on id, using the
// teacher's attributevalue marshal/unmarshal conventions (jobs.go) in
// place of the teacher's single jobs table.
type DynamoStore struct {
	client     *dynamodb.Client
	tableNames map[Table]string
}

// NewDynamoStore builds a DynamoStore. tableNames maps each logical
// Table to the physical DynamoDB table name it is backed by; callers
// typically populate this from Config.Store.
func NewDynamoStore(client *dynamodb.Client, tableNames map[Table]string) *DynamoStore {
	return &DynamoStore{client: client, tableNames: tableNames}
}

func (d *DynamoStore) physicalName(table Table) (string, error) {
	name, ok := d.tableNames[table]
	if !ok || name == "" {
		return "", model.WrapError(model.CodeStoreError, fmt.Sprintf("no table name configured for %q", table), nil)
	}
	return name, nil
}

// SelectAll queries accountID's partition (account_id is the partition
// key) and returns the rows of the first result page; LastEvaluatedKey
// is not followed. The teacher's own DynamoDB use is single-item job
// lookups, so this keeps the simplest faithful translation of
// "select_all(table) for this account".
func (d *DynamoStore) SelectAll(ctx context.Context, accountID string, table Table) ([]Row, error) {
	name, err := d.physicalName(table)
	if err != nil {
		return nil, err
	}
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(name),
		KeyConditionExpression: aws.String("account_id = :acc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":acc": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return nil, model.WrapError(model.CodeStoreError, fmt.Sprintf("select_all %s", table), err)
	}
	rows := make([]Row, 0, len(out.Items))
	for _, item := range out.Items {
		var row Row
		if err := attributevalue.UnmarshalMap(item, &row); err != nil {
			return nil, model.WrapError(model.CodeStoreError, "unmarshal row", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SelectByKey scans for the first row in table matching field=value.
// The primary-key case (field=="id") uses GetItem directly; any other
// field (the executor's natural-key fallback) falls back to a filtered
// query.
func (d *DynamoStore) SelectByKey(ctx context.Context, accountID string, table Table, field string, value any) (Row, bool, error) {
	name, err := d.physicalName(table)
	if err != nil {
		return nil, false, err
	}
	if field == "id" {
		out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(name),
			Key: map[string]types.AttributeValue{
				"account_id": &types.AttributeValueMemberS{Value: accountID},
				"id":         &types.AttributeValueMemberS{Value: fmt.Sprintf("%v", value)},
			},
		})
		if err != nil {
			return nil, false, model.WrapError(model.CodeStoreError, fmt.Sprintf("select_by_key %s", table), err)
		}
		if len(out.Item) == 0 {
			return nil, false, nil
		}
		var row Row
		if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
			return nil, false, model.WrapError(model.CodeStoreError, "unmarshal row", err)
		}
		return row, true, nil
	}

	rows, err := d.SelectAll(ctx, accountID, table)
	if err != nil {
		return nil, false, err
	}
	want := fmt.Sprintf("%v", value)
	for _, r := range rows {
		if v, ok := r[field]; ok && fmt.Sprintf("%v", v) == want {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// Insert writes row into table, setting account_id to accountID.
func (d *DynamoStore) Insert(ctx context.Context, accountID string, table Table, row Row) (Row, error) {
	name, err := d.physicalName(table)
	if err != nil {
		return nil, err
	}
	row = cloneRow(row)
	row["account_id"] = accountID
	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return nil, model.WrapError(model.CodeStoreError, "marshal row", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(name),
		Item:      item,
	})
	if err != nil {
		return nil, model.WrapError(model.CodeStoreError, fmt.Sprintf("insert %s", table), err)
	}
	return row, nil
}

// Update reads the row matching field=value, merges patch into it and
// writes the whole row back with PutItem. DynamoDB's native
// UpdateExpression would avoid the read, but the engine's patches are
// small, irregular maps assembled per action handler, which is exactly
// the shape the teacher's UpdateJobProgress builds by hand per field —
// a full read-modify-write keeps that same irregularity without a
// dynamic UpdateExpression builder.
func (d *DynamoStore) Update(ctx context.Context, accountID string, table Table, field string, value any, patch Row) (Row, error) {
	row, found, err := d.SelectByKey(ctx, accountID, table, field, value)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.WrapError(model.CodeResourceNotFound, fmt.Sprintf("update: no row with %s=%v", field, value), nil)
	}
	merged := cloneRow(row)
	for k, v := range patch {
		merged[k] = v
	}
	return d.Insert(ctx, accountID, table, merged)
}

// Delete removes the row matching field=value, first resolving it to
// its primary key if field isn't already "id".
func (d *DynamoStore) Delete(ctx context.Context, accountID string, table Table, field string, value any) error {
	name, err := d.physicalName(table)
	if err != nil {
		return err
	}
	id := fmt.Sprintf("%v", value)
	if field != "id" {
		row, found, err := d.SelectByKey(ctx, accountID, table, field, value)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		id = fmt.Sprintf("%v", row["id"])
	}
	_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(name),
		Key: map[string]types.AttributeValue{
			"account_id": &types.AttributeValueMemberS{Value: accountID},
			"id":         &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return model.WrapError(model.CodeStoreError, fmt.Sprintf("delete %s", table), err)
	}
	return nil
}

// Upsert inserts rows whose conflictFields identity is not already
// present, mirroring the in-memory store's ignore-duplicates semantics
// relied on by the drift-tick's daily-metrics writes.
func (d *DynamoStore) Upsert(ctx context.Context, accountID string, table Table, rows []Row, conflictFields []string, ignoreDuplicates bool) error {
	existing, err := d.SelectAll(ctx, accountID, table)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[conflictIdentity(r, conflictFields)] = true
	}
	for _, row := range rows {
		key := conflictIdentity(row, conflictFields)
		if seen[key] {
			if ignoreDuplicates {
				continue
			}
		}
		if _, err := d.Insert(ctx, accountID, table, row); err != nil {
			return err
		}
		seen[key] = true
	}
	return nil
}

// executionModeTable is the logical table backing GetMode/SetMode; its
// physical DynamoDB name comes from tableNames like any other table.
const executionModeTable Table = "execution_mode"

// GetMode reads the persisted execution mode for accountID, defaulting
// to manual if absent.
func (d *DynamoStore) GetMode(ctx context.Context, accountID string) (string, error) {
	row, found, err := d.SelectByKey(ctx, accountID, executionModeTable, "id", accountID)
	if err != nil {
		return "", err
	}
	if !found {
		return model.ExecutionModeManual, nil
	}
	mode, _ := row["mode"].(string)
	if mode == "" {
		return model.ExecutionModeManual, nil
	}
	return mode, nil
}

// SetMode persists the execution mode for accountID.
func (d *DynamoStore) SetMode(ctx context.Context, accountID, mode string) error {
	_, err := d.Insert(ctx, accountID, executionModeTable, Row{"id": accountID, "mode": mode})
	return err
}
