package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Kardex-api/internal/application/inventory"
	"github.com/jhoicas/Kardex-api/internal/application/usecase"
	"github.com/jhoicas/Kardex-api/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/Kardex-api/internal/interfaces/http"
)

type apiFixture struct {
	t           *testing.T
	app         *fiber.App
	warehouseID string
	productID   string
}

// newAPI arma el router completo sobre el store en memoria y crea una bodega y un producto.
func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore(time.Second)
	recorder := inventory.NewMovementRecorder(store, store.WarehouseRepository(), zerolog.Nop(),
		inventory.RecorderConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		WarehouseUC: usecase.NewWarehouseUseCase(store.WarehouseRepository()),
		ProductUC:   usecase.NewProductUseCase(store.ProductRepository()),
		Recorder:    recorder,
		Guard:       inventory.NewStockAvailabilityGuard(store.StockRepository(), store.ProductRepository()),
		Ledger:      inventory.NewLedgerQuery(store.KardexRepository(), store.StockRepository(), nil, zerolog.Nop()),
		JWTSecret:   testJWTSecret,
		JWTIssuer:   testIssuer,
		Log:         zerolog.Nop(),
	})

	f := &apiFixture{t: t, app: app}
	status, body := f.do(http.MethodPost, "/api/warehouses", "admin", map[string]any{"name": "Principal"})
	require.Equal(t, http.StatusCreated, status)
	f.warehouseID = body["id"].(string)

	status, body = f.do(http.MethodPost, "/api/products", "admin", map[string]any{"sku": "SKU-1", "name": "Tornillo"})
	require.Equal(t, http.StatusCreated, status)
	f.productID = body["id"].(string)
	assert.Equal(t, true, body["tracks_stock"])
	return f
}

func (f *apiFixture) do(method, path, role string, payload any) (int, map[string]any) {
	return f.doAs(method, path, bearer(f.t, testCompanyID, role), payload)
}

func (f *apiFixture) doAs(method, path, auth string, payload any) (int, map[string]any) {
	f.t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	body := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(f.t, json.Unmarshal(raw, &body))
	} else if len(raw) > 0 {
		body["_list"] = raw
	}
	return resp.StatusCode, body
}

func (f *apiFixture) movement(role, kind, qty, cost string) (int, map[string]any) {
	payload := map[string]any{
		"warehouse_id": f.warehouseID,
		"product_id":   f.productID,
		"kind":         kind,
		"quantity":     qty,
	}
	if cost != "" {
		payload["unit_cost"] = cost
	}
	return f.do(http.MethodPost, "/api/kardex/movements", role, payload)
}

func dec(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "se esperaba decimal serializado como string, llegó %v", v)
	return decimal.RequireFromString(s)
}

func TestKardexAPI_CompraYVenta(t *testing.T) {
	f := newAPI(t)

	status, body := f.movement("bodeguero", "purchase", "10", "100")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "IN", body["direction"])
	assert.True(t, dec(t, body["quantity_after"]).Equal(decimal.NewFromInt(10)))
	assert.True(t, dec(t, body["average_cost_after"]).Equal(decimal.NewFromInt(100)))
	assert.Equal(t, testUserID, body["created_by"])
	assert.NotEmpty(t, body["request_id"])

	status, body = f.movement("bodeguero", "purchase", "5", "130")
	require.Equal(t, http.StatusCreated, status, body)
	assert.True(t, dec(t, body["average_cost_after"]).Equal(decimal.NewFromInt(110)))

	status, body = f.movement("vendedor", "sale", "3", "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "OUT", body["direction"])
	assert.True(t, dec(t, body["unit_cost"]).Equal(decimal.NewFromInt(110)))
	assert.True(t, dec(t, body["quantity_after"]).Equal(decimal.NewFromInt(12)))

	status, body = f.do(http.MethodGet, "/api/kardex/products/"+f.productID+"/stock?warehouse_id="+f.warehouseID, "vendedor", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, dec(t, body["on_hand"]).Equal(decimal.NewFromInt(12)))

	status, body = f.do(http.MethodGet, "/api/kardex/products/"+f.productID+"/history", "bodeguero", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, "purchase", items[0].(map[string]any)["kind"])
	assert.Equal(t, "sale", items[2].(map[string]any)["kind"])
	assert.Nil(t, body["next_after_seq"])
}

func TestKardexAPI_StockInsuficiente(t *testing.T) {
	f := newAPI(t)
	status, _ := f.movement("admin", "purchase", "2", "50")
	require.Equal(t, http.StatusCreated, status)

	status, body := f.movement("vendedor", "sale", "5", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "2", details["available"])
	assert.Equal(t, "5", details["requested"])

	status, body = f.do(http.MethodPost, "/api/kardex/availability", "vendedor", map[string]any{
		"warehouse_id": f.warehouseID, "product_id": f.productID, "quantity": "2", "forbid_zero_out": true,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])

	status, body = f.do(http.MethodPost, "/api/kardex/availability", "vendedor", map[string]any{
		"warehouse_id": f.warehouseID, "product_id": f.productID, "quantity": "2",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["available"])
}

func TestKardexAPI_Validaciones(t *testing.T) {
	f := newAPI(t)

	status, body := f.movement("admin", "robo", "1", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_MOVEMENT_KIND", body["code"])

	status, body = f.movement("admin", "purchase", "0", "10")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_QUANTITY", body["code"])

	status, body = f.movement("admin", "adjustment", "1", "10")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["code"])

	status, body = f.do(http.MethodPost, "/api/kardex/movements", "admin", map[string]any{"kind": "purchase"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["code"])
}

func TestKardexAPI_Roles(t *testing.T) {
	f := newAPI(t)

	status, body := f.movement("vendedor", "purchase", "1", "10")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, _ = f.do(http.MethodPost, "/api/products", "bodeguero", map[string]any{"sku": "X", "name": "Y"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do(http.MethodGet, "/api/kardex/products/"+f.productID+"/reconcile", "vendedor", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestKardexAPI_OtraEmpresa(t *testing.T) {
	f := newAPI(t)
	other := bearer(t, "otra-empresa", "admin")

	status, _ := f.doAs(http.MethodGet, "/api/kardex/products/"+f.productID+"/history", other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := f.doAs(http.MethodPost, "/api/kardex/movements", other, map[string]any{
		"warehouse_id": f.warehouseID, "product_id": f.productID, "kind": "purchase", "quantity": "1", "unit_cost": "1",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestKardexAPI_TrasladoYConciliacion(t *testing.T) {
	f := newAPI(t)
	status, body := f.do(http.MethodPost, "/api/warehouses", "admin", map[string]any{"name": "Sucursal"})
	require.Equal(t, http.StatusCreated, status)
	sucursal := body["id"].(string)

	status, _ = f.movement("bodeguero", "purchase", "8", "20")
	require.Equal(t, http.StatusCreated, status)

	status, body = f.do(http.MethodPost, "/api/kardex/transfers", "bodeguero", map[string]any{
		"product_id": f.productID, "from_warehouse_id": f.warehouseID, "to_warehouse_id": sucursal, "quantity": "3",
		"reference_type": "traslado", "reference_id": "T-1",
	})
	require.Equal(t, http.StatusCreated, status, body)
	out := body["out"].(map[string]any)
	in := body["in"].(map[string]any)
	assert.Equal(t, "transfer_out", out["kind"])
	assert.Equal(t, "transfer_in", in["kind"])
	assert.Equal(t, "T-1", in["reference_id"])
	assert.True(t, dec(t, in["unit_cost"]).Equal(decimal.NewFromInt(20)))

	status, body = f.do(http.MethodGet, "/api/kardex/products/"+f.productID+"/stock", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, dec(t, body["on_hand"]).Equal(decimal.NewFromInt(8)))

	status, body = f.do(http.MethodGet, "/api/kardex/products/"+f.productID+"/reconcile", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	var reports []map[string]any
	require.NoError(t, json.Unmarshal(body["_list"].(json.RawMessage), &reports))
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, true, r["consistent"])
	}

	status, body = f.do(http.MethodPost, "/api/kardex/transfers", "bodeguero", map[string]any{
		"product_id": f.productID, "from_warehouse_id": sucursal, "to_warehouse_id": sucursal, "quantity": "1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["code"])
}

func TestKardexAPI_HistorialPaginado(t *testing.T) {
	f := newAPI(t)
	for i := 0; i < 3; i++ {
		status, _ := f.movement("admin", "purchase", "1", "10")
		require.Equal(t, http.StatusCreated, status)
	}
	base := "/api/kardex/products/" + f.productID + "/history?limit=2"

	status, body := f.do(http.MethodGet, base, "admin", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"].([]any), 2)
	next := body["next_after_seq"].(float64)

	status, body = f.do(http.MethodGet, base+"&after_seq="+strconv.FormatInt(int64(next), 10), "admin", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"].([]any), 1)

	status, _ = f.do(http.MethodGet, base+"&from=ayer", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestKardexAPI_DocumentoAtomico(t *testing.T) {
	f := newAPI(t)
	line := func(kind, qty, cost string) map[string]any {
		l := map[string]any{"warehouse_id": f.warehouseID, "product_id": f.productID, "kind": kind, "quantity": qty,
			"reference_type": "factura", "reference_id": "FV-10"}
		if cost != "" {
			l["unit_cost"] = cost
		}
		return l
	}

	status, body := f.do(http.MethodPost, "/api/kardex/documents", "bodeguero", map[string]any{
		"lines": []any{line("purchase", "10", "100"), line("sale", "4", "")},
	})
	require.Equal(t, http.StatusCreated, status, body)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.True(t, dec(t, items[1].(map[string]any)["quantity_after"]).Equal(decimal.NewFromInt(6)))

	status, body = f.do(http.MethodPost, "/api/kardex/documents", "vendedor", map[string]any{
		"lines": []any{line("sale", "2", ""), line("sale", "5", "")},
	})
	require.Equal(t, http.StatusConflict, status, body)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	details := body["details"].(map[string]any)
	assert.EqualValues(t, 2, details["line"])

	status, body = f.do(http.MethodGet, "/api/kardex/products/"+f.productID+"/stock?warehouse_id="+f.warehouseID, "vendedor", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, dec(t, body["on_hand"]).Equal(decimal.NewFromInt(6)), "la línea 1 del documento rechazado no se aplica")

	status, body = f.do(http.MethodPost, "/api/kardex/documents", "vendedor", map[string]any{
		"lines": []any{line("sale", "1", ""), line("purchase", "1", "1")},
	})
	require.Equal(t, http.StatusForbidden, status)
	assert.EqualValues(t, 2, body["details"].(map[string]any)["line"])

	status, body = f.do(http.MethodPost, "/api/kardex/documents", "bodeguero", map[string]any{"lines": []any{}})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["code"])
}
