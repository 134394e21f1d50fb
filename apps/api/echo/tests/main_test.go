package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/redinnovafp/backend/apps/api/echo"
	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/assistant"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
	aisvc "github.com/redinnovafp/backend/services/ai"
	emailsvc "github.com/redinnovafp/backend/services/email"
	inmemdb "github.com/redinnovafp/backend/storage/database/inmem"
	testutil "github.com/redinnovafp/backend/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// testApp is a server wired on a fresh in-memory database.
type testApp struct {
	conf     *core.Config
	server   *echoapi.Server
	usrRepo  user.Repository
	forms    *form.Service
	settings *settings.Service
	ai       *aisvc.CompleterMock
	mailer   *failingMailer
}

// failingMailer fails every Send with err when set.
type failingMailer struct {
	core.EmailService
	err error
}

func (m *failingMailer) Send(ctx context.Context, msg *core.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	return m.EmailService.Send(ctx, msg)
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()
	emailsvc.ClearSentMessages()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	settingsSvc, err := settings.NewService(context.Background(), inmemdb.NewSettingsRepository(db), validate)
	require.NoError(t, err)

	usrSvc := user.NewService(usrRepo)
	msgSvc := message.NewService(inmemdb.NewMessageRepository(db))
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	mailer := &failingMailer{EmailService: mailSvc}
	dispatcher := meeting.NewDispatcher(msgSvc, mailSvc, logger, conf.Meetings.Location())
	meetingSvc := meeting.NewServiceMock(inmemdb.NewMeetingRepository(db), usrSvc, dispatcher, settingsSvc, logger)
	formSvc := form.NewService(inmemdb.NewFormRepository(db), usrSvc, mailSvc, validate, logger)
	ai := &aisvc.CompleterMock{Content: "Resumen de la innovación\nTags: IA, FP"}
	observatorySvc := observatory.NewService(inmemdb.NewObservatoryRepository(db), ai, validate, logger)
	assistantSvc := assistant.NewService(formSvc, ai, settingsSvc, validate, logger)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		MeetingSvc:     meetingSvc,
		MessageSvc:     msgSvc,
		FormSvc:        formSvc,
		ObservatorySvc: observatorySvc,
		AssistantSvc:   assistantSvc,
		SettingsSvc:    settingsSvc,
		MailSvc:        mailer,
	})

	return &testApp{
		conf:     conf,
		server:   server,
		usrRepo:  usrRepo,
		forms:    formSvc,
		settings: settingsSvc,
		ai:       ai,
		mailer:   mailer,
	}
}

func (app *testApp) createUser(t *testing.T, name, uname string, roles ...string) user.User {
	return testutil.CreateUser(t, app.usrRepo, name, uname, uname+"@test.es", "Pa$$w0rd!", roles, true)
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

// do serves a JSON request & returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func timeAt(s string) time.Time {
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return tm
}
