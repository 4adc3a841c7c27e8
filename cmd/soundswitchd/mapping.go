package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/mapping"
)

func newMappingCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Inspect or edit the persisted handle mapping",
	}
	cmd.AddCommand(newMappingListCmd(configPath))
	cmd.AddCommand(newMappingReleaseCmd(configPath))
	return cmd
}

func newMappingListCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every mapped endpoint attribute and its handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openDatabase(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-only command

			alloc := mapping.NewAllocator(mapping.NewSQLiteStore(db.DB))
			if err := alloc.Load(cmd.Context()); err != nil {
				return err
			}
			entries := alloc.Entries()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HANDLE\tNODE\tENDPOINT\tATTRIBUTE\tEXTERNAL ID")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", e.Handle, e.NodeID, e.EndpointID, e.Attribute, e.ExternalID)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			next, err := alloc.NextFree()
			if errors.Is(err, mapping.ErrPoolExhausted) {
				fmt.Fprintf(out, "%d handle(s) in use, pool exhausted\n", len(entries))
				return nil
			}
			fmt.Fprintf(out, "%d handle(s) in use, next free %d\n", len(entries), next)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// newMappingReleaseCmd frees a handle while the bridge is stopped. The device
// row is deleted with it so the startup reconcile leaves no orphan.
func newMappingReleaseCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "release <handle>",
		Short: "Delete the device on a handle and free the handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("handle must be an integer: %q", args[0])
			}
			if err := device.ValidateHandle(handle); err != nil {
				return err
			}

			ctx := cmd.Context()
			_, db, err := openDatabase(ctx, *configPath)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Writes are committed before close

			entry, err := releaseHandle(ctx, device.NewSQLiteRepository(db.DB), mapping.NewSQLiteStore(db.DB), handle)
			if err != nil {
				return err
			}
			if entry == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "handle %d was not mapped\n", handle)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released handle %d (%s)\n", handle, entry.ExternalID)
			return nil
		},
	}
}

// releaseHandle deletes the device on handle, if any, and releases the
// mapping through the registry's remove hook the same way serve does.
func releaseHandle(ctx context.Context, repo device.Repository, store mapping.Store, handle int) (*mapping.Entry, error) {
	alloc := mapping.NewAllocator(store)
	if err := alloc.Load(ctx); err != nil {
		return nil, err
	}

	registry := device.NewRegistry(repo)
	if err := registry.RefreshCache(ctx); err != nil {
		return nil, err
	}

	var released *mapping.Entry
	registry.SetRemoveHandler(func(ctx context.Context, h int) error {
		e, err := alloc.Release(ctx, h)
		released = e
		return err
	})

	err := registry.DeleteDevice(ctx, handle)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		// No device row; the mapping may still hold the handle.
		return alloc.Release(ctx, handle)
	case err != nil:
		return nil, err
	}
	return released, nil
}
