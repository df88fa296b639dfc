package orders

import "time"

// Order menyimpan snapshot nama & harga produk saat order dibuat;
// setelah itu hanya Status (dan UpdatedAt) yang berubah.
type Order struct {
	ID          string
	UserID      string
	OriginChat  string
	ProductKey  string
	ProductName string
	UnitPrice   int
	Quantity    int
	Total       int
	Status      Status // lihat status.go
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
