package sendnotification

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
)

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func newTestHandler(t *testing.T, sesMock SESService, snsMock SNSService) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := DefaultConfig()
	cfg.FromEmail = "noreply@lending.test"
	cfg.SMSEnabled = true
	return &Handler{
		config:      cfg,
		db:          db,
		logger:      logger.NewNoOpLogger(),
		sesClient:   sesMock,
		snsClient:   snsMock,
		templateMap: loadTemplates(),
	}, dbMock
}

func contactRow(phone interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"business_name", "contact_email", "contact_phone"}).
		AddRow("Acme LLC", "owner@acme.test", phone)
}

func TestExecute_SendsApprovalEmail(t *testing.T) {
	sesMock := new(MockSES)
	sesMock.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return in.Destination.ToAddresses[0] == "owner@acme.test" &&
			*in.Source == "noreply@lending.test"
	})).Return(&ses.SendEmailOutput{}, nil)

	h, dbMock := newTestHandler(t, sesMock, new(MockSNS))
	dbMock.ExpectQuery("SELECT business_name, contact_email").
		WithArgs("app-1").WillReturnRows(contactRow(nil))

	output, err := h.Execute(context.Background(), &Input{
		ApplicationID:    "app-1",
		NotificationType: TypeApplicationApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, output.Status)
	assert.NotEmpty(t, output.NotificationID)
	sesMock.AssertExpectations(t)
}

func TestExecute_HighPrioritySendsSMS(t *testing.T) {
	sesMock := new(MockSES)
	sesMock.On("SendEmail", mock.Anything, mock.Anything).Return(&ses.SendEmailOutput{}, nil)
	snsMock := new(MockSNS)
	snsMock.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.PhoneNumber == "+15551234567"
	})).Return(&sns.PublishOutput{}, nil)

	h, dbMock := newTestHandler(t, sesMock, snsMock)
	dbMock.ExpectQuery("SELECT business_name, contact_email").
		WithArgs("app-1").WillReturnRows(contactRow("+15551234567"))

	output, err := h.Execute(context.Background(), &Input{
		ApplicationID:    "app-1",
		NotificationType: TypeSigningReady,
		Priority:         "high",
		Metadata:         map[string]interface{}{"signingUrl": "https://sign.example.com/sr-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, output.Status)
	snsMock.AssertExpectations(t)
}

func TestExecute_NormalPrioritySkipsSMS(t *testing.T) {
	sesMock := new(MockSES)
	sesMock.On("SendEmail", mock.Anything, mock.Anything).Return(&ses.SendEmailOutput{}, nil)
	snsMock := new(MockSNS)

	h, dbMock := newTestHandler(t, sesMock, snsMock)
	dbMock.ExpectQuery("SELECT business_name, contact_email").
		WithArgs("app-1").WillReturnRows(contactRow("+15551234567"))

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID:    "app-1",
		NotificationType: TypeApplicationSubmitted,
	})
	require.NoError(t, err)
	snsMock.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestExecute_UnknownTemplateFailsValidation(t *testing.T) {
	h, _ := newTestHandler(t, new(MockSES), new(MockSNS))

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID:    "app-1",
		NotificationType: "carrier_pigeon",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
}

func TestExecute_SESFailureIsRetryable(t *testing.T) {
	sesMock := new(MockSES)
	sesMock.On("SendEmail", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	h, dbMock := newTestHandler(t, sesMock, new(MockSNS))
	dbMock.ExpectQuery("SELECT business_name, contact_email").
		WithArgs("app-1").WillReturnRows(contactRow(nil))

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID:    "app-1",
		NotificationType: TypeApplicationDeclined,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRenderTemplate_StripsMissingPlaceholders(t *testing.T) {
	body := renderTemplate("Hi {{businessName}}, link: {{signingUrl}}", map[string]interface{}{
		"businessName": "Acme LLC",
	})
	assert.Equal(t, "Hi Acme LLC, link: ", body)
}
