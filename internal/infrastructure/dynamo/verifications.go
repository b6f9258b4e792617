package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/eduretrieve-api/internal/domain"
)

// verificationTTLAttr is the epoch-seconds attribute DynamoDB TTL deletes on.
const verificationTTLAttr = "ttl"

type verificationItem struct {
	Email     string                 `dynamodbav:"email"`
	Code      string                 `dynamodbav:"code"`
	Action    string                 `dynamodbav:"action"`
	Profile   domain.IdentityProfile `dynamodbav:"profile"`
	CreatedAt time.Time              `dynamodbav:"created_at"`
	ExpiresAt time.Time              `dynamodbav:"expires_at"`
	TTL       int64                  `dynamodbav:"ttl"`
}

// VerificationRepo stores pending signup verifications, one item per email.
// PK: email. DynamoDB TTL removes items eventually; reads check ExpiresAt themselves
// because TTL deletion can lag by hours.
type VerificationRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *VerificationRepo) Put(ctx context.Context, v *domain.PendingVerification) error {
	item, err := attributevalue.MarshalMap(verificationItem{
		Email:     v.Email,
		Code:      v.Code,
		Action:    v.Action.String(),
		Profile:   v.Profile,
		CreatedAt: v.CreatedAt,
		ExpiresAt: v.ExpiresAt,
		TTL:       v.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *VerificationRepo) Get(ctx context.Context, email string) (*domain.PendingVerification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrVerificationNotFound)
	}
	var item verificationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	v := &domain.PendingVerification{
		Email:     item.Email,
		Code:      item.Code,
		Action:    domain.Action(item.Action),
		Profile:   item.Profile,
		CreatedAt: item.CreatedAt,
		ExpiresAt: item.ExpiresAt,
	}
	if now := r.now(); v.Expired(now) {
		if err := r.deleteExpired(ctx, email, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrVerificationExpired)
	}
	return v, nil
}

func (r *VerificationRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	return err
}

// deleteExpired removes the item only while it is still expired at now, so a
// record written concurrently by a newer callback survives.
func (r *VerificationRepo) deleteExpired(ctx context.Context, email string, now time.Time) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("email", email),
		ConditionExpression:      aws.String("#t <= :now"),
		ExpressionAttributeNames: map[string]string{"#t": verificationTTLAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil && !isConditionFailure(err) {
		return err
	}
	return nil
}
