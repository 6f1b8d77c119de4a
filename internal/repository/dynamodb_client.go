package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"sql-question-agent/internal/domain"
)

const (
	skPrefixTurn   = "TURN#"
	skMeta         = "META#"
	statusComplete = "complete"
	ttlDuration    = 7 * 24 * time.Hour
)

// dynamodbAPI is the subset of the DynamoDB client the store calls.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store keeps question/answer turns per conversation in a single table keyed
// by CONV#<id>. Each turn is a TURN#<timestamp> item and a META# item tracks
// the turn count.
type Store struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName, now: time.Now}, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

func (s *Store) ttl() int64 {
	return s.now().Add(ttlDuration).Unix()
}

// GetHistory returns up to limit of the most recent turns, oldest first.
func (s *Store) GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// newest first so the limit keeps the latest turns
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	msgs := make([]domain.Message, len(out.Items))
	for i, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory decode: %w", err)
		}
		msgs[len(out.Items)-1-i] = msg
	}
	return msgs, nil
}

// GetConversationTurnCount returns the stored turn count, or zero for a new
// conversation.
func (s *Store) GetConversationTurnCount(ctx context.Context, conversationID string) (int, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount decode turns: %w", err)
	}
	return turns, nil
}

// SaveCompletedTurn writes the turn and the updated metadata in one
// transaction.
func (s *Store) SaveCompletedTurn(ctx context.Context, turn domain.Turn) error {
	if strings.TrimSpace(turn.ConversationID) == "" {
		return errors.New("repository: SaveCompletedTurn: conversation id is required")
	}
	msg := s.newMessage(turn)
	meta := s.newMeta(turn.ConversationID, turn.Turns)

	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                messageItem(msg),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveCompletedTurn: %w", err)
	}
	return nil
}

func (s *Store) newMessage(turn domain.Turn) domain.Message {
	return domain.Message{
		PK:             convPK(turn.ConversationID),
		SK:             turnSK(s.now()),
		ConversationID: turn.ConversationID,
		Question:       turn.Question,
		Answer:         turn.Answer,
		Steps:          turn.Steps,
		Charted:        turn.Charted,
		Status:         statusComplete,
		TTL:            s.ttl(),
	}
}

func (s *Store) newMeta(conversationID string, turns int) domain.ConversationMeta {
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		LastActivity:   s.now().UTC().Format(time.RFC3339),
		Turns:          turns,
		TTL:            s.ttl(),
	}
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.Message{}, err
	}
	answer, _ := strAttr(item, "answer")
	status, _ := strAttr(item, "status")
	conversationID, _ := strAttr(item, "conversationId")
	steps, _ := intAttr(item, "steps")
	charted := false
	if v, ok := item["charted"].(*types.AttributeValueMemberBOOL); ok {
		charted = v.Value
	}

	return domain.Message{
		PK:             pk,
		SK:             sk,
		ConversationID: conversationID,
		Question:       question,
		Answer:         answer,
		Steps:          steps,
		Charted:        charted,
		Status:         status,
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: msg.PK},
		"SK":             &types.AttributeValueMemberS{Value: msg.SK},
		"conversationId": &types.AttributeValueMemberS{Value: msg.ConversationID},
		"question":       &types.AttributeValueMemberS{Value: msg.Question},
		"answer":         &types.AttributeValueMemberS{Value: msg.Answer},
		"steps":          &types.AttributeValueMemberN{Value: strconv.Itoa(msg.Steps)},
		"charted":        &types.AttributeValueMemberBOOL{Value: msg.Charted},
		"status":         &types.AttributeValueMemberS{Value: msg.Status},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(msg.TTL, 10)},
	}
}

func metaItem(meta domain.ConversationMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: meta.PK},
		"SK":             &types.AttributeValueMemberS{Value: meta.SK},
		"conversationId": &types.AttributeValueMemberS{Value: meta.ConversationID},
		"lastActivity":   &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":          &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
