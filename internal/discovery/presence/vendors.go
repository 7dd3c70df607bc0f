// internal/discovery/presence/vendors.go
package presence

import (
	"strconv"
)

// VendorDatabase contains known USB serial adapters for naming ports whose
// driver reports no product string
type VendorDatabase struct {
	vendors map[uint16]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[uint16]string
}

// NewVendorDatabase creates and initializes the vendor database
func NewVendorDatabase() *VendorDatabase {
	db := &VendorDatabase{
		vendors: make(map[uint16]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// initializeDatabase populates the known vendors
func (db *VendorDatabase) initializeDatabase() {
	db.AddVendor(0x0403, "FTDI", map[uint16]string{
		0x6001: "FT232R USB UART",
		0x6010: "FT2232 Dual USB UART",
		0x6011: "FT4232 Quad USB UART",
		0x6014: "FT232H USB UART",
		0x6015: "FT-X Series USB UART",
	})
	db.AddVendor(0x067B, "Prolific", map[uint16]string{
		0x2303: "PL2303 USB-to-Serial Bridge",
		0x23A3: "PL2303GC USB-to-Serial Bridge",
	})
	db.AddVendor(0x10C4, "Silicon Labs", map[uint16]string{
		0xEA60: "CP210x USB to UART Bridge",
		0xEA70: "CP2105 Dual USB to UART Bridge",
	})
	db.AddVendor(0x1A86, "WCH", map[uint16]string{
		0x7523: "CH340 USB-Serial Adapter",
		0x55D4: "CH9102 USB-Serial Adapter",
	})
	db.AddVendor(0x2341, "Arduino", map[uint16]string{
		0x0043: "Arduino Uno",
		0x0042: "Arduino Mega 2560",
	})
	db.AddVendor(0x04B8, "Seiko Epson Corporation", map[uint16]string{
		0x0202: "TM-T88IV Receipt Printer",
		0x0E15: "TM-T20II Receipt Printer",
	})
	db.AddVendor(0x0519, "Star Micronics Co., Ltd.", nil)
	db.AddVendor(0x1504, "BIXOLON Co., Ltd.", nil)
}

// AddVendor adds or replaces a vendor
func (db *VendorDatabase) AddVendor(vendorID uint16, name string, products map[uint16]string) {
	if products == nil {
		products = make(map[uint16]string)
	}
	db.vendors[vendorID] = &VendorInfo{Name: name, products: products}
}

// Describe returns a description for hexadecimal USB vendor and product IDs
// as reported by the serial enumerator, e.g. "0403" and "6001"
func (db *VendorDatabase) Describe(vid, pid string) (string, bool) {
	vendorID, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return "", false
	}

	vendor, ok := db.vendors[uint16(vendorID)]
	if !ok {
		return "", false
	}

	if productID, err := strconv.ParseUint(pid, 16, 16); err == nil {
		if product, ok := vendor.products[uint16(productID)]; ok {
			return vendor.Name + " " + product, true
		}
	}
	return vendor.Name + " USB Serial Device", true
}
