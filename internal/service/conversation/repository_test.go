package conversation

import (
	"context"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobyojnahub-a11y/websevixof/internal/database/dynamotest"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

const repoNow = "2026-04-02T09:00:00.000Z"

func newDynamoRepo() (*dynamotest.Fake, Repository) {
	fake := &dynamotest.Fake{}
	return fake, NewDynamoRepository(dynamotest.NewDatabase(fake))
}

func returnConversation(t *testing.T, conversation model.ConversationItem) func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	t.Helper()
	attrs, err := attributevalue.MarshalMap(conversation)
	require.NoError(t, err)
	return func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
	}
}

func conditionFails(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	return nil, dynamotest.ConditionFailed()
}

func TestDynamoCreateConversationIsInsertOnly(t *testing.T) {
	fake, repo := newDynamoRepo()

	err := repo.CreateConversation(context.Background(), model.ConversationItem{ConversationID: "VISITOR-s1", ID: "c1"})
	require.NoError(t, err)

	require.Len(t, fake.Puts, 1)
	in := fake.Puts[0]
	assert.Equal(t, model.ConversationsTable, aws.ToString(in.TableName))
	assert.Equal(t, "attribute_not_exists(#pk)", aws.ToString(in.ConditionExpression))
	assert.Equal(t, map[string]string{"#pk": model.ConversationKey}, in.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "VISITOR-s1"}, in.Item[model.ConversationKey])
}

func TestDynamoCreateConversationLosingRace(t *testing.T) {
	fake, repo := newDynamoRepo()
	fake.PutItemFunc = func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		return nil, dynamotest.ConditionFailed()
	}

	err := repo.CreateConversation(context.Background(), model.ConversationItem{ConversationID: "VISITOR-s1"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDynamoRecordMessageAddsToReceivingCounter(t *testing.T) {
	for _, counter := range []Counter{CounterAdmin, CounterClient} {
		t.Run(string(counter), func(t *testing.T) {
			fake, repo := newDynamoRepo()
			fake.UpdateItemFunc = returnConversation(t, model.ConversationItem{ConversationID: "A", UnreadCountAdmin: 3})

			conversation, err := repo.RecordMessage(context.Background(), "A", counter, repoNow)
			require.NoError(t, err)
			assert.Equal(t, 3, conversation.UnreadCountAdmin)

			in := fake.LastUpdate()
			update := dynamotest.Resolve(aws.ToString(in.UpdateExpression), in.ExpressionAttributeNames)
			cond := dynamotest.Resolve(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames)
			assert.Regexp(t, `ADD `+string(counter)+` :v\d+$`, update)
			assert.Contains(t, update, "lastMessageAt = :v")
			assert.Equal(t, "attribute_exists(conversationId)", cond)

			placeholder := regexp.MustCompile(`:v\d+$`).FindString(update)
			assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, in.ExpressionAttributeValues[placeholder])
		})
	}
}

func TestDynamoConversationUpdateOnMissingRecord(t *testing.T) {
	fake, repo := newDynamoRepo()
	fake.UpdateItemFunc = conditionFails

	_, err := repo.RecordMessage(context.Background(), "missing", CounterAdmin, repoNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoMarkMessageReadOnce(t *testing.T) {
	fake, repo := newDynamoRepo()

	require.NoError(t, repo.MarkMessageRead(context.Background(), "A", "sort-1", repoNow))

	in := fake.LastUpdate()
	assert.Equal(t, model.MessagesTable, aws.ToString(in.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "A"}, in.Key[model.MessageHashKey])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "sort-1"}, in.Key[model.MessageRangeKey])
	cond := dynamotest.Resolve(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames)
	assert.Regexp(t, `^read = :v\d+$`, cond)

	fake.UpdateItemFunc = conditionFails
	assert.ErrorIs(t, repo.MarkMessageRead(context.Background(), "A", "sort-1", repoNow), ErrAlreadyRead)
}

func TestDynamoListMessagesLimitReturnsNewestAscending(t *testing.T) {
	fake, repo := newDynamoRepo()
	fake.QueryFunc = func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		var items []map[string]types.AttributeValue
		for _, sortKey := range []string{"3", "2"} {
			item, err := attributevalue.MarshalMap(model.MessageItem{ConversationKey: "A", SortKey: sortKey})
			require.NoError(t, err)
			items = append(items, item)
		}
		return &dynamodb.QueryOutput{Items: items}, nil
	}

	messages, err := repo.ListMessages(context.Background(), "A", 2)
	require.NoError(t, err)

	require.Len(t, fake.Queries, 1)
	assert.False(t, aws.ToBool(fake.Queries[0].ScanIndexForward))
	assert.Equal(t, int32(2), aws.ToInt32(fake.Queries[0].Limit))
	require.Len(t, messages, 2)
	assert.Equal(t, "2", messages[0].SortKey)
	assert.Equal(t, "3", messages[1].SortKey)
}

func TestDynamoListMessagesWithoutLimitReadsForward(t *testing.T) {
	fake, repo := newDynamoRepo()

	_, err := repo.ListMessages(context.Background(), "A", 0)
	require.NoError(t, err)

	require.Len(t, fake.Queries, 1)
	assert.True(t, aws.ToBool(fake.Queries[0].ScanIndexForward))
	assert.Nil(t, fake.Queries[0].Limit)
}
