package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	appfs "github.com/trezcool/darasa/fs"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func TestConsoleService_SendMessages(t *testing.T) {
	logger := logsvc.NewNopLogger()
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, logger)
	svc := NewConsoleServiceMock(conf, logger)

	to := []mail.Address{{Name: "Ama", Address: "ama@skul.test"}}
	svc.SendMessages(
		&core.EmailMessage{
			To:           to,
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]interface{}{"Name": "Ama", "Path": "/password-reset/uid/token"},
		},
		&core.EmailMessage{To: to, Subject: "Plain", BodyStr: "hello"},
		&core.EmailMessage{Subject: "nobody", BodyStr: "dropped"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].TextContent, conf.FrontendBaseURL+"/password-reset/uid/token")
	assert.Contains(t, sent[0].HTMLContent, "/password-reset/uid/token")
	assert.Equal(t, "hello", sent[1].TextContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}
