package orderbook

import "testing"

func BenchmarkPlaceResting(b *testing.B) {
	book := NewOrderBook("BTC-USDT")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = book.Place(&Order{
			ID:    uint64(i + 1),
			Side:  Buy,
			Type:  Limit,
			Price: int64(i%1000) + 1,
			Qty:   10,
			Seq:   uint64(i + 1),
		})
	}
}

func BenchmarkPlaceMatching(b *testing.B) {
	book := NewOrderBook("BTC-USDT")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := Buy
		if i%2 == 1 {
			side = Sell
		}
		_, _ = book.Place(&Order{
			ID:    uint64(i + 1),
			Side:  side,
			Type:  Limit,
			Price: 100,
			Qty:   10,
			Seq:   uint64(i + 1),
		})
		book.retired = book.retired[:0]
	}
}

func BenchmarkCancel(b *testing.B) {
	book := NewOrderBook("BTC-USDT")
	for i := 0; i < b.N; i++ {
		_, _ = book.Place(&Order{
			ID:    uint64(i + 1),
			Side:  Buy,
			Type:  Limit,
			Price: int64(i%1000) + 1,
			Qty:   10,
			Seq:   uint64(i + 1),
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = book.Cancel(uint64(i + 1))
	}
}
