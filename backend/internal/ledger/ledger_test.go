package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

var testUser = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func tx(typ models.TransactionType, symbol string, qty int64, price string) models.Transaction {
	return models.Transaction{
		UserID:    testUser,
		Symbol:    symbol,
		Quantity:  qty,
		Price:     decimal.RequireFromString(price),
		Type:      typ,
		Timestamp: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
	}
}

func TestApplyBuyOpensPosition(t *testing.T) {
	pos, err := Apply(nil, tx(models.Buy, "XYZ", 10, "50.00"))
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if pos == nil {
		t.Fatal("expected a position, got nil")
	}
	if pos.Quantity != 10 {
		t.Fatalf("Quantity=%d, expected 10", pos.Quantity)
	}
	if !pos.AverageCost.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("AverageCost=%s, expected 50", pos.AverageCost)
	}
}

func TestApplyScenario(t *testing.T) {
	steps := []struct {
		name     string
		tx       models.Transaction
		wantQty  int64
		wantCost string
		wantNil  bool
	}{
		{name: "buy 10 @ 50", tx: tx(models.Buy, "XYZ", 10, "50.00"), wantQty: 10, wantCost: "50"},
		{name: "buy 10 @ 60", tx: tx(models.Buy, "XYZ", 10, "60.00"), wantQty: 20, wantCost: "55"},
		{name: "sell 15 @ 70", tx: tx(models.Sell, "XYZ", 15, "70.00"), wantQty: 5, wantCost: "55"},
		{name: "sell 5 @ 80", tx: tx(models.Sell, "XYZ", 5, "80.00"), wantNil: true},
	}

	var pos *models.Position
	for _, step := range steps {
		next, err := Apply(pos, step.tx)
		if err != nil {
			t.Fatalf("%s: Apply returned error: %v", step.name, err)
		}
		if step.wantNil {
			if next != nil {
				t.Fatalf("%s: expected position to be removed, got %+v", step.name, next)
			}
			pos = nil
			continue
		}
		if next.Quantity != step.wantQty {
			t.Fatalf("%s: Quantity=%d, expected %d", step.name, next.Quantity, step.wantQty)
		}
		if !next.AverageCost.Equal(decimal.RequireFromString(step.wantCost)) {
			t.Fatalf("%s: AverageCost=%s, expected %s", step.name, next.AverageCost, step.wantCost)
		}
		pos = next
	}
}

func TestApplyBuysProduceVolumeWeightedMean(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		var pos *models.Position
		var totalQty int64
		totalCost := 0.0

		for i := 0; i < 1+rng.Intn(40); i++ {
			qty := int64(1 + rng.Intn(500))
			price := decimal.NewFromFloat(1 + rng.Float64()*999).Round(2)
			next, err := Apply(pos, models.Transaction{
				UserID: testUser, Symbol: "ABC", Quantity: qty, Price: price, Type: models.Buy,
			})
			if err != nil {
				t.Fatalf("run %d: Apply returned error: %v", run, err)
			}
			pos = next
			totalQty += qty
			totalCost += price.InexactFloat64() * float64(qty)
		}

		if pos.Quantity != totalQty {
			t.Fatalf("run %d: Quantity=%d, expected %d", run, pos.Quantity, totalQty)
		}
		want := totalCost / float64(totalQty)
		got := pos.AverageCost.InexactFloat64()
		if diff := got - want; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("run %d: AverageCost=%v, expected %v", run, got, want)
		}
	}
}

func TestApplySellKeepsAverageCost(t *testing.T) {
	pos := &models.Position{UserID: testUser, Symbol: "XYZ", Quantity: 30, AverageCost: decimal.RequireFromString("12.345")}

	next, err := Apply(pos, tx(models.Sell, "XYZ", 7, "99.99"))
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if next.Quantity != 23 {
		t.Fatalf("Quantity=%d, expected 23", next.Quantity)
	}
	if !next.AverageCost.Equal(pos.AverageCost) {
		t.Fatalf("AverageCost=%s, expected unchanged %s", next.AverageCost, pos.AverageCost)
	}
	if pos.Quantity != 30 {
		t.Fatalf("input position mutated: Quantity=%d", pos.Quantity)
	}
}

func TestApplySellRejections(t *testing.T) {
	held := &models.Position{UserID: testUser, Symbol: "XYZ", Quantity: 5, AverageCost: decimal.RequireFromString("10")}

	tests := []struct {
		name     string
		existing *models.Position
		tx       models.Transaction
		wantErr  error
	}{
		{name: "no position", existing: nil, tx: tx(models.Sell, "XYZ", 1, "10"), wantErr: models.ErrInsufficientShares},
		{name: "oversell", existing: held, tx: tx(models.Sell, "XYZ", 6, "10"), wantErr: models.ErrInsufficientShares},
		{name: "zero quantity", existing: held, tx: tx(models.Sell, "XYZ", 0, "10"), wantErr: models.ErrInvalidQuantity},
		{name: "zero price", existing: held, tx: tx(models.Buy, "XYZ", 1, "0"), wantErr: models.ErrInvalidPrice},
		{name: "bad action", existing: held, tx: tx("HOLD", "XYZ", 1, "10"), wantErr: models.ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := Apply(tt.existing, tt.tx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err=%v, expected %v", err, tt.wantErr)
			}
			if pos != nil {
				t.Fatalf("expected nil position on error, got %+v", pos)
			}
		})
	}
	if held.Quantity != 5 {
		t.Fatalf("held position mutated: Quantity=%d", held.Quantity)
	}
}

func TestRealizedPL(t *testing.T) {
	got := RealizedPL(decimal.RequireFromString("55"), decimal.RequireFromString("70"), 15)
	if !got.Equal(decimal.RequireFromString("225")) {
		t.Fatalf("RealizedPL=%s, expected 225", got)
	}
}

func TestReplayMatchesIncrementalApply(t *testing.T) {
	log := []models.Transaction{
		tx(models.Buy, "AAA", 10, "10"),
		tx(models.Buy, "BBB", 5, "20"),
		tx(models.Buy, "AAA", 10, "20"),
		tx(models.Sell, "BBB", 5, "25"),
		tx(models.Buy, "CCC", 1, "100"),
		tx(models.Buy, "BBB", 2, "30"),
	}

	positions, err := Replay(log)
	if err != nil {
		t.Fatalf("Replay returned error: %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("got %d positions, expected 3", len(positions))
	}
	wantOrder := []string{"AAA", "CCC", "BBB"}
	for i, sym := range wantOrder {
		if positions[i].Symbol != sym {
			t.Fatalf("positions[%d]=%s, expected %s", i, positions[i].Symbol, sym)
		}
	}
	if !positions[0].AverageCost.Equal(decimal.RequireFromString("15")) {
		t.Fatalf("AAA AverageCost=%s, expected 15", positions[0].AverageCost)
	}
	if !positions[2].AverageCost.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("BBB AverageCost=%s, expected 30 after re-entry", positions[2].AverageCost)
	}
}

func TestReplayRejectsOversell(t *testing.T) {
	_, err := Replay([]models.Transaction{
		tx(models.Buy, "AAA", 1, "10"),
		tx(models.Sell, "AAA", 2, "10"),
	})
	if !errors.Is(err, models.ErrInsufficientShares) {
		t.Fatalf("err=%v, expected ErrInsufficientShares", err)
	}
}

func TestValuate(t *testing.T) {
	holdings := []*models.Position{
		{Symbol: "AAA", Quantity: 10, AverageCost: decimal.RequireFromString("50")},
		{Symbol: "BBB", Quantity: 4, AverageCost: decimal.RequireFromString("25")},
		{Symbol: "GONE", Quantity: 1, AverageCost: decimal.RequireFromString("5")},
	}
	prices := PriceLookupFunc(func(_ context.Context, symbol string) (decimal.Decimal, error) {
		switch symbol {
		case "AAA":
			return decimal.RequireFromString("60"), nil
		case "BBB":
			return decimal.RequireFromString("20"), nil
		}
		return decimal.Zero, models.ErrInvalidSymbol
	})

	v, err := Valuate(context.Background(), holdings, prices)
	if err != nil {
		t.Fatalf("Valuate returned error: %v", err)
	}
	if len(v.Holdings) != 3 {
		t.Fatalf("got %d holdings, expected 3", len(v.Holdings))
	}

	aaa := v.Holdings[0]
	if !aaa.MarketValue.Equal(decimal.NewFromInt(600)) || !aaa.UnrealizedPL.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("AAA value=%s pl=%s, expected 600/100", aaa.MarketValue, aaa.UnrealizedPL)
	}
	if !aaa.UnrealizedPLPercent.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("AAA pl%%=%s, expected 20", aaa.UnrealizedPLPercent)
	}
	if !v.Holdings[1].UnrealizedPL.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("BBB pl=%s, expected -20", v.Holdings[1].UnrealizedPL)
	}
	if v.Holdings[2].PriceAvailable {
		t.Fatal("GONE should be unpriced")
	}
	if !v.TotalValue.Equal(decimal.NewFromInt(680)) {
		t.Fatalf("TotalValue=%s, expected 680", v.TotalValue)
	}
	if !v.TotalUnrealizedPL.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("TotalUnrealizedPL=%s, expected 80", v.TotalUnrealizedPL)
	}
	if len(v.Unpriced) != 1 || v.Unpriced[0] != "GONE" {
		t.Fatalf("Unpriced=%v, expected [GONE]", v.Unpriced)
	}
}
