package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// contactIndex is the GSI projecting conversations by contact key.
const contactIndex = "contactKey-index"

// ErrVersionConflict indicates a racing writer updated the conversation since
// it was loaded. Callers reload and replay.
var ErrVersionConflict = errors.New("conversation: version conflict")

// ErrNotFound indicates no conversation matched the lookup.
var ErrNotFound = errors.New("conversation: not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// conversationItem is the persisted shape: the conversation plus numeric
// mirrors of the timestamps the sweep queries filter on.
type conversationItem struct {
	Conversation
	LastActivityUnix int64 `dynamodbav:"lastActivityUnix"`
	ScheduledAtUnix  int64 `dynamodbav:"scheduledAtUnix,omitempty"`
}

func itemFromConversation(c *Conversation) conversationItem {
	item := conversationItem{
		Conversation:     *c,
		LastActivityUnix: c.LastActivity.UTC().Unix(),
	}
	if c.Appointment.Scheduled && !c.Appointment.ScheduledAt.IsZero() {
		item.ScheduledAtUnix = c.Appointment.ScheduledAt.UTC().Unix()
	}
	return item
}

// Store persists conversations to DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

// Create inserts a new conversation record.
func (s *Store) Create(ctx context.Context, c *Conversation) error {
	if c == nil {
		return errors.New("conversation: conversation cannot be nil")
	}
	c.Version = 1

	item, err := attributevalue.MarshalMap(itemFromConversation(c))
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal conversation: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to create conversation: %w", err)
	}
	return nil
}

// Save writes the conversation back, guarded by the version it was loaded
// with. On success the in-memory version is bumped to match the stored one.
func (s *Store) Save(ctx context.Context, c *Conversation) error {
	if c == nil {
		return errors.New("conversation: conversation cannot be nil")
	}

	expected := c.Version
	c.Version = expected + 1

	item, err := attributevalue.MarshalMap(itemFromConversation(c))
	if err != nil {
		c.Version = expected
		return fmt.Errorf("conversation: failed to marshal conversation: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expected)},
		},
	})
	if err != nil {
		c.Version = expected
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrVersionConflict
		}
		return fmt.Errorf("conversation: failed to save conversation: %w", err)
	}
	return nil
}

// Get fetches a conversation by ID.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation: id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to fetch conversation: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return unmarshalConversation(out.Item)
}

// FindActive returns the single active conversation for a contact, or
// ErrNotFound when the contact is unseen or inactive.
func (s *Store) FindActive(ctx context.Context, contactKey string) (*Conversation, error) {
	if contactKey == "" {
		return nil, errors.New("conversation: contact key required")
	}

	// The filter runs after the page is read, so a contact with a long
	// history can have the active record pushed past the first page.
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(contactIndex),
			KeyConditionExpression: aws.String("contactKey = :contact"),
			FilterExpression:       aws.String("active = :active"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":contact": &types.AttributeValueMemberS{Value: contactKey},
				":active":  &types.AttributeValueMemberBOOL{Value: true},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("conversation: failed to query active conversation: %w", err)
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if len(items) == 0 {
		return nil, ErrNotFound
	}
	if len(items) > 1 {
		s.logger.Warn("multiple active conversations for contact", "contact_key", contactKey, "count", len(items))
	}
	return unmarshalConversation(items[0])
}

// ListActive returns all active conversations (idle-cleanup sweep input).
func (s *Store) ListActive(ctx context.Context) ([]Conversation, error) {
	return s.scan(ctx, aws.String("active = :active"), map[string]types.AttributeValue{
		":active": &types.AttributeValueMemberBOOL{Value: true},
	})
}

// ListConfirmedBetween returns conversations holding a confirmed appointment
// scheduled inside [from, to) (reminder sweep input).
func (s *Store) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Conversation, error) {
	return s.scan(ctx,
		aws.String("appointment.scheduled = :scheduled AND appointment.#st = :confirmed AND scheduledAtUnix >= :from AND scheduledAtUnix < :to"),
		map[string]types.AttributeValue{
			":scheduled": &types.AttributeValueMemberBOOL{Value: true},
			":confirmed": &types.AttributeValueMemberS{Value: string(AppointmentConfirmed)},
			":from":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", from.UTC().Unix())},
			":to":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", to.UTC().Unix())},
		},
		func(in *dynamodb.ScanInput) {
			in.ExpressionAttributeNames = map[string]string{"#st": "status"}
		})
}

// ListTouchedBetween returns conversations whose last activity falls inside
// [from, to) (analytics rollup input).
func (s *Store) ListTouchedBetween(ctx context.Context, from, to time.Time) ([]Conversation, error) {
	return s.scan(ctx,
		aws.String("lastActivityUnix >= :from AND lastActivityUnix < :to"),
		map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", from.UTC().Unix())},
			":to":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", to.UTC().Unix())},
		})
}

// ListRecent returns up to limit conversations for the admin listing.
func (s *Store) ListRecent(ctx context.Context, limit int32) ([]Conversation, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(s.tableName)}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}
	out, err := s.client.Scan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to scan conversations: %w", err)
	}
	return unmarshalConversations(out.Items)
}

func (s *Store) scan(ctx context.Context, filter *string, values map[string]types.AttributeValue, opts ...func(*dynamodb.ScanInput)) ([]Conversation, error) {
	var results []Conversation
	var startKey map[string]types.AttributeValue

	for {
		in := &dynamodb.ScanInput{
			TableName:                 aws.String(s.tableName),
			FilterExpression:          filter,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		}
		for _, opt := range opts {
			opt(in)
		}

		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("conversation: failed to scan conversations: %w", err)
		}

		page, err := unmarshalConversations(out.Items)
		if err != nil {
			return nil, err
		}
		results = append(results, page...)

		if out.LastEvaluatedKey == nil {
			return results, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func unmarshalConversation(item map[string]types.AttributeValue) (*Conversation, error) {
	var record conversationItem
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode conversation: %w", err)
	}
	c := record.Conversation
	return &c, nil
}

func unmarshalConversations(items []map[string]types.AttributeValue) ([]Conversation, error) {
	results := make([]Conversation, 0, len(items))
	for _, item := range items {
		c, err := unmarshalConversation(item)
		if err != nil {
			return nil, err
		}
		results = append(results, *c)
	}
	return results, nil
}
