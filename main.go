// Command bankcrawler downloads bank product catalogs and product details.
package main

import (
	"github.com/JakeFAU/bank-product-crawler/cmd"
)

func main() {
	cmd.Execute()
}
