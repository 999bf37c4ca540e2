package shell

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// table renders rows into one write so notifications cannot split it.
func (s *Shell) table(fill func(tw *tabwriter.Writer)) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fill(tw)
	_ = tw.Flush()
	_, _ = s.out.Write(buf.Bytes())
}

func (s *Shell) renderProducts(list []product.Product) {
	if len(list) == 0 {
		s.printf("No products\n")
		return
	}
	s.table(func(tw *tabwriter.Writer) {
		_, _ = fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tCATEGORY")
		for _, p := range list {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				p.ID, p.Name, cart.FormatAmount(p.Price), p.Stock, p.Category)
		}
	})
}

func (s *Shell) renderCart() {
	items := s.cart.Items()
	if len(items) == 0 {
		s.printf("Your cart is empty\n")
		return
	}
	s.table(func(tw *tabwriter.Writer) {
		_, _ = fmt.Fprintln(tw, "ITEM\tPRODUCT\tPRICE\tQTY\tSUBTOTAL")
		for _, item := range items {
			name, price := item.ProductRef(), "-"
			if item.Product != nil {
				name = item.Product.Name
				price = cart.FormatAmount(item.Product.Price)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				item.ID, name, price, item.Quantity, cart.FormatAmount(cart.Subtotal(item)))
		}
	})
	s.printf("Total: %s (%d items)\n", cart.FormatAmount(cart.Total(items)), countUnits(items))
}

// renderOrders prints the orders accumulated from index from onwards.
func (s *Shell) renderOrders(from int) {
	all := s.history.Orders()
	if len(all) == 0 {
		s.printf("No orders yet\n")
		return
	}
	if from > len(all) {
		from = len(all)
	}
	s.table(func(tw *tabwriter.Writer) {
		for _, o := range all[from:] {
			_, _ = fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n",
				o.Number, o.CreatedAt.Format("2006-01-02 15:04"), cart.FormatAmount(o.Total), o.ID)
			for _, line := range o.Items {
				_, _ = fmt.Fprintf(tw, "\t%d × %s\t%s\t\n",
					line.Quantity, line.Name, cart.FormatAmount(line.Subtotal()))
			}
		}
	})
	if s.history.HasMore() {
		s.printf("Showing %d of %d orders, type more for the next page\n", len(all), s.history.TotalCount())
	}
}

func countUnits(items []cart.Item) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
