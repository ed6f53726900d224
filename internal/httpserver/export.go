package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
)

const exportPageSize = 200

var exportHeaders = []string{
	"ID", "Tracking code", "Created", "Status", "Source", "Customer", "Name", "Phone",
	"City", "Address", "Items", "Total", "Currency", "Payment", "Delivery agent",
	"Delivery status", "Contact consent",
}

// exportOrders streams the filtered order list as a spreadsheet. Only
// moderators and admins may export.
func (h *handlers) exportOrders(c *gin.Context) {
	who := identityFrom(c)
	if who.Role != domain.RoleModerator && who.Role != domain.RoleAdmin {
		if who.IsGuest() {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		writeError(c, domain.ErrForbidden)
		return
	}
	filter, ok := orderFilterFromQuery(c)
	if !ok {
		return
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		writeError(c, err)
		return
	}
	header := sheet.AddRow()
	for _, title := range exportHeaders {
		header.AddCell().SetValue(title)
	}

	project := projectFrom(c)
	filter.Limit, filter.Offset = exportPageSize, 0
	for {
		orders, total, err := h.OrderSvc.List(c.Request.Context(), project.ID, filter, who)
		if err != nil {
			writeError(c, err)
			return
		}
		for _, o := range orders {
			writeOrderRow(sheet.AddRow(), o)
		}
		filter.Offset += len(orders)
		if len(orders) == 0 || filter.Offset >= total {
			break
		}
	}

	name := fmt.Sprintf("orders-%s-%s.xlsx", project.Key, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		h.logger.Error("write order export", zap.Error(err))
		_ = c.Error(err)
	}
}

func writeOrderRow(row *xlsx.Row, o domain.Order) {
	customer := ""
	if o.CustomerID != nil {
		customer = *o.CustomerID
	}
	items := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, fmt.Sprintf("%s x%d", l.Name, l.Quantity))
	}
	agent, deliveryStatus := "", ""
	if o.Delivery != nil {
		agent, deliveryStatus = o.Delivery.AgentID, string(o.Delivery.Status)
	}

	row.AddCell().SetValue(o.ID)
	row.AddCell().SetValue(o.TrackingCode())
	row.AddCell().SetValue(o.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	row.AddCell().SetValue(string(o.Status))
	row.AddCell().SetValue(string(o.Source))
	row.AddCell().SetValue(customer)
	row.AddCell().SetValue(o.Contact.Name)
	row.AddCell().SetValue(o.Contact.Phone)
	row.AddCell().SetValue(o.Contact.City)
	row.AddCell().SetValue(o.Contact.Address)
	row.AddCell().SetValue(strings.Join(items, "; "))
	row.AddCell().SetValue(fmt.Sprintf("%d.%02d", o.TotalCents/100, o.TotalCents%100))
	row.AddCell().SetValue(o.Currency)
	row.AddCell().SetValue(string(o.PaymentMethod))
	row.AddCell().SetValue(agent)
	row.AddCell().SetValue(deliveryStatus)
	row.AddCell().SetValue(o.ContactConsent)
}
