package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maintsync/maintsync/internal/blob"
	"github.com/maintsync/maintsync/internal/model"
	"github.com/maintsync/maintsync/internal/store"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Manage maintenance work orders",
	Long:  "Create, edit, list and drive work orders through their lifecycle. Everything works offline; changes sync when a connection is available.",
}

var orderCreateCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Open a new work order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		requester, _ := cmd.Flags().GetInt64("requester")
		title, _ := cmd.Flags().GetString("title")
		operability, _ := cmd.Flags().GetString("operability")
		equipment, _ := cmd.Flags().GetStringSlice("equipment")
		types, _ := cmd.Flags().GetStringSlice("type")
		priority, _ := cmd.Flags().GetString("priority")
		preventive, _ := cmd.Flags().GetBool("preventive")
		deadlineRaw, _ := cmd.Flags().GetString("deadline")

		p := store.CreateOrderParams{
			Title:       title,
			Description: args[0],
			Operability: model.Operability(operability),
			RequesterID: requester,
			Equipment:   equipment,
			Priority:    model.Priority(priority),
			Preventive:  preventive,
		}
		for _, t := range types {
			p.MaintenanceTypes = append(p.MaintenanceTypes, model.MaintenanceType(t))
		}
		if deadlineRaw != "" {
			d, err := time.Parse("2006-01-02", deadlineRaw)
			if err != nil {
				return fmt.Errorf("deadline must be YYYY-MM-DD: %q", deadlineRaw)
			}
			p.Deadline = &d
		}

		o, err := a.store.CreateWorkOrder(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Printf("%s work order %s created (%s)\n", okMark(), o.ID, statusText(o.Status))
		return nil
	},
}

var orderEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a work order; only the given flags change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, _ := cmd.Flags().GetInt64("as")

		var upd store.OrderUpdate
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			upd.Title = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			upd.Description = &v
		}
		if cmd.Flags().Changed("operability") {
			v, _ := cmd.Flags().GetString("operability")
			op := model.Operability(v)
			upd.Operability = &op
		}
		if cmd.Flags().Changed("equipment") {
			v, _ := cmd.Flags().GetStringSlice("equipment")
			upd.Equipment = &v
		}
		if cmd.Flags().Changed("priority") {
			v, _ := cmd.Flags().GetString("priority")
			pr := model.Priority(v)
			upd.Priority = &pr
		}
		if cmd.Flags().Changed("notes") {
			v, _ := cmd.Flags().GetString("notes")
			upd.MaintenanceNotes = &v
		}
		if cmd.Flags().Changed("materials") {
			v, _ := cmd.Flags().GetStringSlice("materials")
			upd.MaterialsUsed = &v
		}

		o, err := a.store.UpdateWorkOrder(cmd.Context(), args[0], upd, actor)
		if err != nil {
			return err
		}
		fmt.Printf("%s work order %s updated\n", okMark(), o.ID)
		return nil
	},
}

var orderRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a work order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, _ := cmd.Flags().GetInt64("as")
		if err := a.store.DeleteWorkOrder(cmd.Context(), args[0], actor); err != nil {
			return err
		}
		fmt.Printf("%s work order %s deleted\n", okMark(), args[0])
		return nil
	},
}

var orderListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List work orders, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		statusFilter, _ := cmd.Flags().GetString("status")
		orders := a.store.ListWorkOrders()
		if statusFilter != "" {
			filtered := orders[:0]
			for _, o := range orders {
				if statusText(o.Status) == statusFilter {
					filtered = append(filtered, o)
				}
			}
			orders = filtered
		}
		if len(orders) == 0 {
			fmt.Println("No work orders")
			return nil
		}

		fmt.Printf("%-16s %-28s %-12s %-10s %s\n", "ID", "STATUS", "OPERABILITY", "PRIORITY", "EQUIPMENT")
		for _, o := range orders {
			fmt.Printf("%-16s %-28s %-12s %-10s %s\n",
				o.ID, coloredStatus(o.Status), o.Operability, o.Priority, strings.Join(o.Equipment, ", "))
		}
		return nil
	},
}

var orderShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show work order details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.store.GetWorkOrder(args[0])
		if err != nil {
			return err
		}
		printOrder(o)
		return nil
	},
}

var orderStartCmd = &cobra.Command{
	Use:   "start [id]",
	Short: "Move a work order into execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tech, _ := cmd.Flags().GetString("technician")
		o, err := a.store.TransitionStatus(cmd.Context(), args[0], model.StatusInProgress,
			model.TransitionDetails{AssignedTo: tech})
		if err != nil {
			return err
		}
		fmt.Printf("%s work order %s in progress, assigned to %s\n", okMark(), o.ID, o.AssignedTo)
		return nil
	},
}

var orderCompleteCmd = &cobra.Command{
	Use:   "complete [id]",
	Short: "Complete a work order, or request a back-dated completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		notes, _ := cmd.Flags().GetString("notes")
		by, _ := cmd.Flags().GetString("by")
		atRaw, _ := cmd.Flags().GetString("at")
		justification, _ := cmd.Flags().GetString("justification")

		if atRaw != "" {
			at, err := time.Parse("2006-01-02 15:04", atRaw)
			if err != nil {
				return fmt.Errorf("completion timestamp must be \"YYYY-MM-DD HH:MM\": %q", atRaw)
			}
			o, err := a.store.SubmitCompletionChange(cmd.Context(), args[0], notes, by, at, justification)
			if err != nil {
				return err
			}
			fmt.Printf("%s work order %s awaiting manager approval of the completion date\n", okMark(), o.ID)
			return nil
		}

		o, err := a.store.TransitionStatus(cmd.Context(), args[0], model.StatusCompleted,
			model.TransitionDetails{Notes: notes, CompletedBy: by})
		if err != nil {
			return err
		}
		fmt.Printf("%s work order %s completed by %s\n", okMark(), o.ID, o.CompletedBy)
		return nil
	},
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a work order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reason, _ := cmd.Flags().GetString("reason")
		o, err := a.store.TransitionStatus(cmd.Context(), args[0], model.StatusCanceled,
			model.TransitionDetails{Reason: reason})
		if err != nil {
			return err
		}
		fmt.Printf("%s work order %s canceled\n", okMark(), o.ID)
		return nil
	},
}

var orderApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a preventive maintenance proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		approver, _ := cmd.Flags().GetInt64("as")
		o, err := a.store.ApprovePreventive(cmd.Context(), args[0], approver)
		if err != nil {
			return err
		}
		fmt.Printf("%s work order %s approved by %s\n", okMark(), o.ID, o.ApprovedBy)
		return nil
	},
}

var orderResolveCompletionCmd = &cobra.Command{
	Use:   "resolve-completion [id]",
	Short: "Approve or reject a pending completion-date change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reject, _ := cmd.Flags().GetBool("reject")
		by, _ := cmd.Flags().GetString("by")
		o, err := a.store.ResolveCompletionChange(cmd.Context(), args[0], !reject, by)
		if err != nil {
			return err
		}
		if reject {
			fmt.Printf("%s completion change on %s rejected; order back in progress\n", okMark(), o.ID)
		} else {
			fmt.Printf("%s work order %s completed as of %s\n", okMark(), o.ID, o.CompletedAt.Format("02/01/2006 15:04"))
		}
		return nil
	},
}

var orderAttachCmd = &cobra.Command{
	Use:   "attach [id] [file]",
	Short: "Store a file with a work order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, _ := cmd.Flags().GetInt64("as")
		mediaType, _ := cmd.Flags().GetString("media-type")

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		handle, err := blob.NewHandle()
		if err != nil {
			return err
		}
		if err := a.blobs.Put(cmd.Context(), handle, mediaType, f); err != nil {
			return err
		}

		o, err := a.store.GetWorkOrder(args[0])
		if err != nil {
			return err
		}
		attachments := append(o.Attachments, model.Attachment{
			FileName:  filepath.Base(args[1]),
			MediaType: mediaType,
			Handle:    handle,
		})
		upd := store.OrderUpdate{Attachments: &attachments}
		if _, err := a.store.UpdateWorkOrder(cmd.Context(), args[0], upd, actor); err != nil {
			// keep the blob store consistent with the order record
			_ = a.blobs.Delete(cmd.Context(), handle)
			return err
		}
		fmt.Printf("%s attached %s to %s\n", okMark(), filepath.Base(args[1]), args[0])
		return nil
	},
}

func printOrder(o model.WorkOrder) {
	fmt.Printf("\nWork Order: %s\n", o.ID)
	if o.Title != "" {
		fmt.Printf("Title:       %s\n", o.Title)
	}
	fmt.Printf("Status:      %s\n", coloredStatus(o.Status))
	fmt.Printf("Operability: %s\n", o.Operability)
	fmt.Printf("Requester:   %s (%s)\n", o.Requester.Name, o.RequesterSector)
	fmt.Printf("Equipment:   %s\n", strings.Join(o.Equipment, ", "))
	if o.Priority != "" {
		fmt.Printf("Priority:    %s\n", o.Priority)
	}
	fmt.Printf("Description: %s\n", o.Description)
	if o.Deadline != nil {
		fmt.Printf("Deadline:    %s\n", o.Deadline.Format("02/01/2006"))
	}
	if o.ApprovedBy != "" {
		fmt.Printf("Approved by: %s\n", o.ApprovedBy)
	}
	if o.AssignedTo != "" {
		fmt.Printf("Assigned to: %s\n", o.AssignedTo)
	}
	if o.StartedAt != nil {
		fmt.Printf("Started:     %s\n", o.StartedAt.Format("02/01/2006 15:04"))
	}
	if o.CompletedAt != nil {
		fmt.Printf("Completed:   %s by %s\n", o.CompletedAt.Format("02/01/2006 15:04"), o.CompletedBy)
	}
	if o.CancelReason != "" {
		fmt.Printf("Canceled:    %s\n", o.CancelReason)
	}
	if o.MaintenanceNotes != "" {
		fmt.Printf("Notes:       %s\n", o.MaintenanceNotes)
	}
	if len(o.MaterialsUsed) > 0 {
		fmt.Printf("Materials:   %s\n", strings.Join(o.MaterialsUsed, ", "))
	}
	if o.PendingCompletion != nil {
		fmt.Printf("Pending completion change: %s (%s)\n",
			o.PendingCompletion.RequestedAt.Format("02/01/2006 15:04"), o.PendingCompletion.Justification)
	}
	for _, att := range o.Attachments {
		fmt.Printf("Attachment:  %s (%s)\n", att.FileName, att.MediaType)
	}
	fmt.Println()
}

func statusText(s model.Status) string {
	if s == model.StatusNone {
		return "new"
	}
	return string(s)
}

func coloredStatus(s model.Status) string {
	switch s {
	case model.StatusCompleted:
		return color.New(color.FgGreen).Sprint(statusText(s))
	case model.StatusCanceled:
		return color.New(color.FgRed).Sprint(statusText(s))
	case model.StatusInProgress:
		return color.New(color.FgCyan).Sprint(statusText(s))
	case model.StatusPendingApproval, model.StatusPendingCompletionApproval:
		return color.New(color.FgYellow).Sprint(statusText(s))
	default:
		return statusText(s)
	}
}

// OrderCmd returns the order command tree.
func OrderCmd() *cobra.Command {
	orderCreateCmd.Flags().Int64("requester", 0, "Requester account id")
	orderCreateCmd.Flags().StringP("title", "t", "", "Short title")
	orderCreateCmd.Flags().StringP("operability", "o", "operational", "Machine state: operational, partial, inoperative")
	orderCreateCmd.Flags().StringSliceP("equipment", "e", nil, "Equipment names (repeatable)")
	orderCreateCmd.Flags().StringSlice("type", nil, "Maintenance types (repeatable)")
	orderCreateCmd.Flags().StringP("priority", "p", "", "Priority: low, medium, high, urgent")
	orderCreateCmd.Flags().Bool("preventive", false, "Create as a preventive proposal awaiting approval")
	orderCreateCmd.Flags().String("deadline", "", "Deadline (YYYY-MM-DD)")

	orderEditCmd.Flags().Int64("as", 0, "Acting account id")
	orderEditCmd.Flags().StringP("title", "t", "", "New title")
	orderEditCmd.Flags().StringP("description", "d", "", "New description")
	orderEditCmd.Flags().StringP("operability", "o", "", "New operability")
	orderEditCmd.Flags().StringSliceP("equipment", "e", nil, "New equipment list")
	orderEditCmd.Flags().StringP("priority", "p", "", "New priority")
	orderEditCmd.Flags().String("notes", "", "Maintenance notes")
	orderEditCmd.Flags().StringSlice("materials", nil, "Materials used")

	orderRemoveCmd.Flags().Int64("as", 0, "Acting account id")
	orderListCmd.Flags().StringP("status", "s", "", "Filter by status")

	orderStartCmd.Flags().StringP("technician", "t", "", "Name of the responsible technician")
	_ = orderStartCmd.MarkFlagRequired("technician")

	orderCompleteCmd.Flags().String("notes", "", "What was done")
	orderCompleteCmd.Flags().String("by", "", "Who completed the work")
	orderCompleteCmd.Flags().String("at", "", "Back-dated completion time (\"YYYY-MM-DD HH:MM\"), needs manager approval")
	orderCompleteCmd.Flags().String("justification", "", "Why the completion is back-dated")

	orderCancelCmd.Flags().StringP("reason", "r", "", "Why the order is canceled")
	_ = orderCancelCmd.MarkFlagRequired("reason")

	orderApproveCmd.Flags().Int64("as", 0, "Approving manager account id")
	_ = orderApproveCmd.MarkFlagRequired("as")

	orderResolveCompletionCmd.Flags().Bool("reject", false, "Reject instead of approve")
	orderResolveCompletionCmd.Flags().String("by", "", "Resolving manager name")
	_ = orderResolveCompletionCmd.MarkFlagRequired("by")

	orderAttachCmd.Flags().Int64("as", 0, "Acting account id")
	orderAttachCmd.Flags().String("media-type", "application/octet-stream", "MIME type of the file")

	orderCmd.AddCommand(orderCreateCmd)
	orderCmd.AddCommand(orderEditCmd)
	orderCmd.AddCommand(orderRemoveCmd)
	orderCmd.AddCommand(orderListCmd)
	orderCmd.AddCommand(orderShowCmd)
	orderCmd.AddCommand(orderStartCmd)
	orderCmd.AddCommand(orderCompleteCmd)
	orderCmd.AddCommand(orderCancelCmd)
	orderCmd.AddCommand(orderApproveCmd)
	orderCmd.AddCommand(orderResolveCompletionCmd)
	orderCmd.AddCommand(orderAttachCmd)
	return orderCmd
}
