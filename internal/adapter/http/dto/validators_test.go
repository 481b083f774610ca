package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindingValidator(t *testing.T) *validator.Validate {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	return v
}

func TestValidateMSISDN(t *testing.T) {
	v := bindingValidator(t)

	valid := []string{"+256700000001", "256700000001", "+14155550123"}
	for _, num := range valid {
		assert.NoError(t, v.Var(num, "msisdn"), num)
	}

	invalid := []string{"", "abc", "+256 700 000", "12345678", "+1234567890123456"}
	for _, num := range invalid {
		assert.Error(t, v.Var(num, "msisdn"), num)
	}
}

func TestValidateSenderID(t *testing.T) {
	v := bindingValidator(t)

	assert.NoError(t, v.Var("ATUpdates", "sender_id"))
	assert.NoError(t, v.Var("INFO", "sender_id"))

	assert.Error(t, v.Var("", "sender_id"))
	assert.Error(t, v.Var("WayTooLongSenderID", "sender_id"))
	assert.Error(t, v.Var("bad name!", "sender_id"))
}

func TestSanitizeStruct(t *testing.T) {
	reason := "  <b>blocked</b>  "
	req := DeliveryReportRequest{
		ID:            "  ATXid_1  ",
		Status:        "Failed",
		FailureReason: &reason,
	}

	SanitizeStruct(&req)

	assert.Equal(t, "ATXid_1", req.ID)
	assert.Equal(t, "&lt;b&gt;blocked&lt;/b&gt;", *req.FailureReason)
}

func TestSanitizeStruct_NonPointerIsNoop(t *testing.T) {
	req := DeliveryReportRequest{ID: " x "}
	SanitizeStruct(req)
	assert.Equal(t, " x ", req.ID)
}
