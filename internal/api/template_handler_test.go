package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"certforge/internal/database"
)

// 每个测试用独立命名的内存库，cache=shared 让 gorm 连接池共享同一份数据。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// 指向不可达 Redis 的 asynq 客户端；入队失败在被测路径上是可容忍的。
func newTestAsynqClient(t *testing.T) *asynq.Client {
	t.Helper()
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	return client
}

func seedTemplate(t *testing.T, db *gorm.DB, dealerID uint, layoutJSON string) database.Template {
	t.Helper()
	dealer := database.Dealer{Model: gorm.Model{ID: dealerID}, Name: "Dealer " + strconv.Itoa(int(dealerID))}
	if err := db.FirstOrCreate(&dealer, "id = ?", dealerID).Error; err != nil {
		t.Fatalf("seed dealer: %v", err)
	}
	template := database.Template{
		Title:               "Test Template",
		DealerID:            dealerID,
		BackgroundObjectKey: "dealer-assets/1/bg.png",
		BackgroundWidth:     800,
		BackgroundHeight:    600,
		LayoutConfig:        datatypes.JSON(layoutJSON),
	}
	if err := db.Create(&template).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return template
}

func templateContext(t *testing.T, method, path string, body []byte, templateID uint, dealerID uint) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, path, reader)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(templateID))}}
	c.Set("dealerID", dealerID)
	return c, w
}

func TestGetLayoutReturnsStoredJSONVerbatim(t *testing.T) {
	db := newTestDB(t)
	stored := `{"canvasWidth":800,"canvasHeight":600,"backgroundMode":"stretch","elements":[],"gridSnap":{"enabled":true}}`
	template := seedTemplate(t, db, 1, stored)

	h := NewTemplateHandler(db, newTestAsynqClient(t), nil)
	c, w := templateContext(t, http.MethodGet, "/v1/templates/1/layout", nil, template.ID, 1)

	h.GetLayout(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != stored {
		t.Fatalf("layout body rewritten:\ngot  %s\nwant %s", w.Body.String(), stored)
	}
}

func TestSaveLayoutPreservesUnknownFields(t *testing.T) {
	db := newTestDB(t)
	template := seedTemplate(t, db, 1, `{"canvasWidth":800,"canvasHeight":600,"backgroundMode":"stretch","elements":[]}`)

	incoming := `{
		"canvasWidth": 1000,
		"canvasHeight": 700,
		"backgroundMode": "contain",
		"elements": [
			{"type":"student_name","x":10,"y":20,"fontSize":18,"glow":{"radius":4}}
		],
		"gridSnap": {"enabled": true, "size": 8}
	}`

	h := NewTemplateHandler(db, newTestAsynqClient(t), nil)
	c, w := templateContext(t, http.MethodPut, "/v1/templates/1/layout", []byte(incoming), template.ID, 1)

	h.SaveLayout(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Template
	if err := db.First(&reloaded, template.ID).Error; err != nil {
		t.Fatalf("reload template: %v", err)
	}

	var saved map[string]json.RawMessage
	if err := json.Unmarshal(reloaded.LayoutConfig, &saved); err != nil {
		t.Fatalf("unmarshal saved layout: %v", err)
	}
	if _, ok := saved["gridSnap"]; !ok {
		t.Fatal("top-level unknown field gridSnap dropped on save")
	}

	var elements []map[string]json.RawMessage
	if err := json.Unmarshal(saved["elements"], &elements); err != nil {
		t.Fatalf("unmarshal elements: %v", err)
	}
	if len(elements) != 1 {
		t.Fatalf("elements = %d, want 1", len(elements))
	}
	if _, ok := elements[0]["glow"]; !ok {
		t.Fatal("element-level unknown field glow dropped on save")
	}
}

func TestSaveLayoutRejectsInvalidConfiguration(t *testing.T) {
	db := newTestDB(t)
	template := seedTemplate(t, db, 1, `{"canvasWidth":800,"canvasHeight":600,"backgroundMode":"stretch","elements":[]}`)

	bad := `{"canvasWidth":0,"canvasHeight":600,"backgroundMode":"stretch","elements":[]}`
	h := NewTemplateHandler(db, newTestAsynqClient(t), nil)
	c, w := templateContext(t, http.MethodPut, "/v1/templates/1/layout", []byte(bad), template.ID, 1)

	h.SaveLayout(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestLayoutEndpointsEnforceDealerOwnership(t *testing.T) {
	db := newTestDB(t)
	template := seedTemplate(t, db, 1, `{"canvasWidth":800,"canvasHeight":600,"backgroundMode":"stretch","elements":[]}`)

	h := NewTemplateHandler(db, newTestAsynqClient(t), nil)
	c, w := templateContext(t, http.MethodGet, "/v1/templates/1/layout", nil, template.ID, 2)

	h.GetLayout(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for foreign dealer", w.Code)
	}
}

func TestCreateTemplateInitializesEmptyCanvas(t *testing.T) {
	db := newTestDB(t)
	dealer := database.Dealer{Model: gorm.Model{ID: 1}, Name: "Dealer"}
	if err := db.Create(&dealer).Error; err != nil {
		t.Fatalf("seed dealer: %v", err)
	}

	body := `{"title":"T","background_object_key":"dealer-assets/1/bg.png","background_width":1200,"background_height":900}`
	h := NewTemplateHandler(db, newTestAsynqClient(t), nil)
	c, w := templateContext(t, http.MethodPost, "/v1/templates", []byte(body), 0, 1)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = nil

	h.CreateTemplate(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var created database.Template
	if err := db.First(&created, "dealer_id = ?", 1).Error; err != nil {
		t.Fatalf("reload template: %v", err)
	}
	var cfg struct {
		CanvasWidth  int               `json:"canvasWidth"`
		CanvasHeight int               `json:"canvasHeight"`
		Elements     []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(created.LayoutConfig, &cfg); err != nil {
		t.Fatalf("unmarshal layout: %v", err)
	}
	if cfg.CanvasWidth != 1200 || cfg.CanvasHeight != 900 {
		t.Fatalf("canvas = %dx%d, want 1200x900", cfg.CanvasWidth, cfg.CanvasHeight)
	}
	if len(cfg.Elements) != 0 {
		t.Fatalf("new template should have no elements, got %d", len(cfg.Elements))
	}
}
