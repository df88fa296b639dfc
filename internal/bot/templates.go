package bot

import (
	"bytes"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"text/template"
)

// Semua teks balasan ada di sini, satu define per jenis balasan.
const replyTemplates = `
{{define "welcome"}}Halo kak! 👋 Aku bot toko roti.
Ketik *menu* atau *roti* untuk melihat produk.
Untuk pesan: ` + "`pesan <produk> <jumlah>`" + `
Ketik /help untuk daftar perintah.{{end}}

{{define "help"}}*Perintah*
/menu - daftar produk
/stok <produk> - cek stok
/pesan <produk> <jumlah> - buat pesanan
/status <id> - cek status pesanan
/cancel <id> - batalkan pesanan
/pesanan - pesanan terakhirmu
{{- if .Admin}}

*Admin*
/pending - pesanan menunggu persetujuan
/approve <id> - setujui pesanan
/reject <id> - tolak pesanan
{{md .UsageAdd}}
{{md .UsageStock}}
{{md .UsagePrice}}
{{md .UsageDelete}}{{end}}{{end}}

{{define "menu"}}{{if not .}}Maaf kak, belum ada produk yang tersedia.{{else}}*Daftar Produk*

{{range .}}• *{{md .Name}}* (key: {{md .Key}})
{{if .Description}}  _{{md .Description}}_
{{end}}  Harga: {{rupiah .UnitPrice}}
  Stok: {{.Stock}}

{{end}}Ketik ` + "`pesan <key> <jumlah>`" + ` atau pilih produk di bawah.{{end}}{{end}}

{{define "not_found"}}Maaf, produk tidak ditemukan. Ketik *menu* untuk melihat daftar produk.
{{- if .}}
Produk tersedia: {{md .}}{{end}}{{end}}

{{define "which_product"}}Produk yang mana kak? Ketik *menu* untuk melihat daftar produk.{{end}}

{{define "insufficient"}}Maaf, stok *{{md .Name}}* hanya {{.Available}}.{{end}}

{{define "invalid_qty"}}Jumlah harus berupa angka lebih dari 0 ya kak.{{end}}

{{define "stock"}}Stok *{{md .Name}}*: {{.Stock}}
Harga: {{rupiah .UnitPrice}}{{end}}

{{define "ask_interest"}}*{{md .Name}}*
{{if .Description}}_{{md .Description}}_
{{end}}Harga: {{rupiah .UnitPrice}} • Stok: {{.Stock}}

Mau pesan produk ini kak?{{end}}

{{define "ask_quantity"}}Mau pesan berapa *{{md .Name}}*? Balas dengan angka ya kak (stok: {{.Stock}}).{{end}}

{{define "reprompt"}}Balas dengan angka jumlah pesanan ya kak, misalnya ` + "`2`" + `.{{end}}

{{define "confirm"}}*Konfirmasi Pesanan*
• Produk: *{{md .Name}}*
• Jumlah: {{.Quantity}}
• Total: {{rupiah .Total}}

Lanjutkan pesanan?{{end}}

{{define "placed"}}Terima kasih kak 🙏
Pesananmu sudah kami terima.

• Produk: *{{md .Order.ProductName}}*
• Jumlah: {{.Order.Quantity}}
• Total: {{rupiah .Order.Total}}
• ID pesanan: ` + "`{{.Order.ID}}`" + `

{{if .Open}}Pesanan akan segera dikonfirmasi admin.{{else}}Toko sedang tutup, pesanan akan dikonfirmasi mulai {{.NextOpen}}.{{end}}
Ketik /status {{.Order.ID}} untuk memeriksa status.{{end}}

{{define "flow_cancelled"}}Oke kak, pesanan tidak dilanjutkan. Ketik *menu* kalau mau lihat produk lagi.{{end}}

{{define "start_over"}}Sesi pemesanan sudah berakhir. Silakan mulai lagi dengan ketik *menu* ya kak.{{end}}

{{define "invalid_action"}}Tombol ini sudah tidak berlaku. Ketik *menu* untuk mulai lagi.{{end}}

{{define "unknown"}}Maaf kak 🙏
Ketik *menu* atau *roti* untuk melihat produk.{{end}}

{{define "unknown_command"}}Perintah tidak dikenal. Ketik /help untuk bantuan.{{end}}

{{define "usage"}}Format salah. Gunakan: {{md .}}{{end}}

{{define "admin_only"}}Perintah ini hanya untuk admin.{{end}}

{{define "order_not_found"}}Order tidak ditemukan.{{end}}

{{define "already_terminal"}}Pesanan {{if .ID}}` + "`{{.ID}}` " + `{{end}}sudah tidak bisa diubah{{if .Status}} (status: {{.Status.Label}}){{end}}.{{end}}

{{define "status"}}Status pesanan ` + "`{{.ID}}`" + `: *{{.Status.Label}}*
• {{md .ProductName}} x{{.Quantity}}
• Total: {{rupiah .Total}}{{end}}

{{define "my_orders"}}{{if not .}}Kamu belum punya pesanan.{{else}}*Pesanan Terakhir*
{{range .}}
` + "`{{.ID}}`" + `
{{md .ProductName}} x{{.Quantity}} • {{rupiah .Total}} • {{.Status.Label}}
{{end}}{{end}}{{end}}

{{define "pending"}}{{if not .}}Tidak ada pesanan yang menunggu persetujuan.{{else}}*Menunggu Persetujuan*
{{range .}}
` + "`{{.ID}}`" + `
{{md .ProductName}} x{{.Quantity}} • {{rupiah .Total}} • user {{md .UserID}}
{{end}}{{end}}{{end}}

{{define "order_cancelled"}}Order ` + "`{{.ID}}`" + ` dibatalkan.{{end}}

{{define "approved_ack"}}Order ` + "`{{.ID}}`" + ` disetujui. Stok *{{md .ProductName}}* berkurang {{.Quantity}}.{{end}}

{{define "auto_rejected_ack"}}Order ` + "`{{.ID}}`" + ` otomatis ditolak: stok *{{md .Name}}* tinggal {{.Available}}, butuh {{.Required}}.{{end}}

{{define "rejected_ack"}}Order ` + "`{{.ID}}`" + ` ditolak.{{end}}

{{define "product_saved"}}Produk *{{md .Name}}* berhasil disimpan (key: {{md .Key}}, harga {{rupiah .UnitPrice}}, stok {{.Stock}}).{{end}}

{{define "stock_updated"}}Stok *{{md .Name}}* sekarang {{.Stock}}.{{end}}

{{define "price_updated"}}Harga *{{md .Name}}* sekarang {{rupiah .UnitPrice}}.{{end}}

{{define "product_deleted"}}Produk ` + "`{{.}}`" + ` dihapus.{{end}}

{{define "failure"}}Maaf kak, terjadi kesalahan. Coba lagi sebentar lagi ya.{{end}}
`

var templates = template.Must(template.New("replies").
	Funcs(template.FuncMap{"rupiah": catalog.FormatPrice, "md": chat.EscapeMarkdown}).
	Parse(replyTemplates))

// render never fails the caller: a broken template degrades to the generic failure text.
func render(name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "Maaf kak, terjadi kesalahan. Coba lagi sebentar lagi ya."
	}
	return buf.String()
}
