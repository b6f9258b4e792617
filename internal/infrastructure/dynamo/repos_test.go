package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/eduretrieve-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.UpdateItemOutput{}, args.Error(0)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.TransactWriteItemsOutput{}, args.Error(0)
}

func TestUserRepo_CreateWithProfile_WritesGuardUserAndProfile(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users", "profiles")

	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 3 {
			return false
		}
		guard := in.TransactItems[0].Put.Item["user_id"].(*types.AttributeValueMemberS)
		return guard.Value == "EMAIL#ada@example.com" &&
			aws.ToString(in.TransactItems[2].Put.TableName) == "profiles"
	})).Return(nil)

	err := repo.CreateWithProfile(context.Background(),
		&domain.User{UserID: "u1", Email: "ada@example.com"},
		&domain.Profile{ID: "u1", Email: "ada@example.com"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestUserRepo_CreateWithProfile_ConditionFailureIsConflict(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users", "profiles")
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(&types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	})

	err := repo.CreateWithProfile(context.Background(), &domain.User{UserID: "u1", Email: "a@b.c"}, &domain.Profile{ID: "u1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users", "profiles")
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_GetByEmail_Found(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users", "profiles")
	item, err := attributevalue.MarshalMap(domain.User{UserID: "u1", Email: "ada@example.com", EmailConfirmed: true})
	require.NoError(t, err)
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == "email-index"
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

	u, err := repo.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	assert.True(t, u.EmailConfirmed)
}

func verificationOutput(t *testing.T, expiresAt time.Time) *dynamodb.GetItemOutput {
	t.Helper()
	item, err := attributevalue.MarshalMap(verificationItem{
		Email:     "ada@example.com",
		Code:      "123456",
		Action:    "signup",
		Profile:   domain.IdentityProfile{ProviderID: "g-1", Email: "ada@example.com", EmailVerified: true, Name: "Ada"},
		ExpiresAt: expiresAt,
		TTL:       expiresAt.Unix(),
	})
	require.NoError(t, err)
	return &dynamodb.GetItemOutput{Item: item}
}

func TestVerificationRepo_Get_Live(t *testing.T) {
	api := new(mockAPI)
	repo := NewVerificationRepo(api, "signup_verifications")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	api.On("GetItem", mock.Anything, mock.Anything).Return(verificationOutput(t, now.Add(time.Minute)), nil)

	v, err := repo.Get(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "123456", v.Code)
	assert.Equal(t, domain.ActionSignup, v.Action)
	assert.Equal(t, "g-1", v.Profile.ProviderID)
	api.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
}

func TestVerificationRepo_Get_ExpiredDeletesConditionally(t *testing.T) {
	api := new(mockAPI)
	repo := NewVerificationRepo(api, "signup_verifications")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	api.On("GetItem", mock.Anything, mock.Anything).Return(verificationOutput(t, now), nil)
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "#t <= :now"
	})).Return(&types.ConditionalCheckFailedException{})

	_, err := repo.Get(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrVerificationExpired)
	api.AssertExpectations(t)
}

func TestVerificationRepo_Get_Missing(t *testing.T) {
	api := new(mockAPI)
	repo := NewVerificationRepo(api, "signup_verifications")
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Get(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrVerificationNotFound)
}

func TestVerificationRepo_Get_ClientError(t *testing.T) {
	api := new(mockAPI)
	repo := NewVerificationRepo(api, "signup_verifications")
	api.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := repo.Get(context.Background(), "ada@example.com")
	assert.EqualError(t, err, "throttled")
}
