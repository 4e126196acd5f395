package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/andreyvit/dynfield"
)

func newObjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new-object",
		Short: "Print a fresh object address to attach fields to",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), dynfield.NewUID())
			return nil
		},
	}
}

func addCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <parent> <key> <value>",
		Short: "Attach a new field to an object",
		Long: `Add attaches a string field named key to the parent object. It fails if
the parent already has a field with this key, whatever its type.

Example:
  dynfield add 0x5f3e...c1 score 10`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseParent(args[0])
			if err != nil {
				return err
			}
			return classify(a.db.Tx(true, func(tx *dynfield.Tx) error {
				return dynfield.Add(tx, &parent, args[1], args[2])
			}))
		},
	}
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <parent> <key>",
		Short: "Print the value of a field",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseParent(args[0])
			if err != nil {
				return err
			}
			return classify(a.db.Tx(false, func(tx *dynfield.Tx) error {
				v, err := dynfield.Borrow[string, string](tx, parent, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}))
		},
	}
}

func setCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <parent> <key> <value>",
		Short: "Replace the value of an existing field",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseParent(args[0])
			if err != nil {
				return err
			}
			return classify(a.db.Tx(true, func(tx *dynfield.Tx) error {
				return dynfield.BorrowMut(tx, &parent, args[1], func(v *string) error {
					*v = args[2]
					return nil
				})
			}))
		},
	}
}

func removeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <parent> <key>",
		Short: "Delete a field and print its last value",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseParent(args[0])
			if err != nil {
				return err
			}
			return classify(a.db.Tx(true, func(tx *dynfield.Tx) error {
				v, err := dynfield.Remove[string, string](tx, &parent, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}))
		},
	}
}

func existsCmd(a *app) *cobra.Command {
	var typed bool
	cmd := &cobra.Command{
		Use:   "exists <parent> <key>",
		Short: "Print whether an object has a field",
		Long: `Exists prints true if the parent has a field named key. With --typed, the
field must also hold a string.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseParent(args[0])
			if err != nil {
				return err
			}
			return a.db.Tx(false, func(tx *dynfield.Tx) error {
				var ok bool
				if typed {
					ok = dynfield.ExistsWithType[string, string](tx, parent, args[1])
				} else {
					ok = dynfield.Exists(tx, parent, args[1])
				}
				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(ok))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&typed, "typed", false, "also require a string value")
	return cmd
}

func dumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "List every stored record",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.db.Tx(false, func(tx *dynfield.Tx) error {
				fmt.Fprint(cmd.OutOrStdout(), tx.Dump())
				return nil
			})
		},
	}
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print record counts and sizes",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.db.Tx(false, func(tx *dynfield.Tx) error {
				s := tx.Stats()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "backend:    %s\n", a.db.Backend())
				fmt.Fprintf(out, "fields:     %d\n", s.Fields)
				fmt.Fprintf(out, "objects:    %d\n", s.Objects)
				fmt.Fprintf(out, "corrupt:    %d\n", s.Corrupt)
				fmt.Fprintf(out, "data_size:  %d\n", s.DataSize)
				fmt.Fprintf(out, "data_alloc: %d\n", s.DataAlloc)
				return nil
			})
		},
	}
}
