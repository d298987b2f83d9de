package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dreamph/excelmap"
	"github.com/rs/zerolog"
)

type Product struct {
	Code   string    `excel:"code"`
	Name   string    `excel:"name"`
	Price  float64   `excel:"price"`
	Stock  *int      `excel:"stock"`
	Active bool      `excel:"active"`
	Since  time.Time `excel:"since" fmt:"2006-01-02"`
}

var headers = excelmap.Headers(
	"code", "Code",
	"name", "Name",
	"price", "Price",
	"stock", "In Stock",
	"active", "Active",
	"since", "Since",
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	stock := 12
	products := []Product{
		{Code: "P-001", Name: "Keyboard", Price: 49.9, Stock: &stock, Active: true, Since: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Code: "P-002", Name: "Mouse", Price: 19.5, Active: false, Since: time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC)},
	}

	derrs, err := excelmap.SaveFile("products.xlsx", headers, products,
		excelmap.Sheet("Products"),
		excelmap.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("save error: %v", err)
	}
	for _, e := range derrs {
		fmt.Printf("record=%d prop=%s msg=%v\n", e.Record, e.Prop, e.Err)
	}

	parsed, cerrs, err := excelmap.ParseFile[Product]("products.xlsx", headers.Reverse(),
		excelmap.Sheet("Products"),
		excelmap.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("parse error: %v", err)
	}

	fmt.Println("== PRODUCTS ==")
	for i, p := range parsed {
		fmt.Printf("%d: %+v\n", i+1, p)
	}

	fmt.Println("== CELL ERRORS ==")
	for _, e := range cerrs {
		fmt.Printf("cell=%s header=%s msg=%v\n", e.Cell, e.Header, e.Err)
	}

	if len(cerrs) > 0 {
		in, err := os.Open("products.xlsx")
		if err != nil {
			log.Fatal(err)
		}
		defer in.Close()
		out, err := os.Create("products_errors.xlsx")
		if err != nil {
			log.Fatal(err)
		}
		defer out.Close()
		// messages go into column G, next to the data
		if err := excelmap.WriteErrorsTo(out, in, cerrs, excelmap.Sheet("Products"), excelmap.ErrCol(7)); err != nil {
			log.Fatalf("write errors: %v", err)
		}
	}
}
