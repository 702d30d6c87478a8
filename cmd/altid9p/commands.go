package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aqwari.net/net/altid"
	"aqwari.net/net/altid/altidproto"
)

// withConn dials target and passes the connection to fn.
func (o *options) withConn(target string, fn func(ctx context.Context, c *altid.Conn) error) error {
	return o.run(func(ctx context.Context) error {
		client, endpoint := o.client(target)
		c, err := client.Dial(ctx, endpoint)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, c)
	})
}

func readCmd(o *options) *cobra.Command {
	var (
		offset uint64
		count  uint32
	)
	cmd := &cobra.Command{
		Use:   "read <target> <path>",
		Short: "Print the contents of a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withConn(args[0], func(ctx context.Context, c *altid.Conn) error {
				data, err := c.Read(ctx, args[1], offset, count)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().Uint64Var(&offset, "offset", 0, "byte offset to start reading at")
	cmd.Flags().Uint32Var(&count, "count", 1<<16, "maximum number of bytes to read")
	return cmd
}

func writeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "write <target> <path> [text...]",
		Short: "Write text, or standard input, to a file",
		Long: `Write the remaining arguments, joined by spaces, to a file. With
no text arguments, standard input is written instead. Control files
of altid services take commands this way, for example

  altid9p write irc /#altid/ctrl "open #9fans"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) > 2 {
				data = []byte(strings.Join(args[2:], " "))
			} else {
				var err error
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return o.withConn(args[0], func(ctx context.Context, c *altid.Conn) error {
				_, err := c.Write(ctx, args[1], data)
				return err
			})
		},
	}
}

func statCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <target> <path>",
		Short: "Describe a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withConn(args[0], func(ctx context.Context, c *altid.Conn) error {
				st, err := c.Stat(ctx, args[1])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "name\t%s\n", st.Name)
				fmt.Fprintf(w, "mode\t%s\n", modeString(st.Mode))
				fmt.Fprintf(w, "length\t%d\n", st.Length)
				fmt.Fprintf(w, "owner\t%s:%s\n", st.Uid, st.Gid)
				fmt.Fprintf(w, "qid\t%s\n", st.Qid)
				return w.Flush()
			})
		},
	}
}

func modeString(mode uint32) string {
	fm := os.FileMode(mode & 0777)
	if mode&altidproto.DMDIR != 0 {
		fm |= os.ModeDir
	}
	if mode&altidproto.DMAPPEND != 0 {
		fm |= os.ModeAppend
	}
	return fm.String()
}

func rmCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <target> <path>...",
		Short: "Remove files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withConn(args[0], func(ctx context.Context, c *altid.Conn) error {
				for _, name := range args[1:] {
					if err := c.Remove(ctx, name); err != nil {
						return fmt.Errorf("%s: %w", name, err)
					}
				}
				return nil
			})
		},
	}
}

func createCmd(o *options) *cobra.Command {
	var dir bool
	cmd := &cobra.Command{
		Use:   "create <target> <path>",
		Short: "Create an empty file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm := uint32(0644)
			if dir {
				perm = altidproto.DMDIR | 0755
			}
			return o.withConn(args[0], func(ctx context.Context, c *altid.Conn) error {
				return c.Create(ctx, args[1], perm)
			})
		},
	}
	cmd.Flags().BoolVarP(&dir, "dir", "d", false, "create a directory")
	return cmd
}

func servicesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Connect to every configured service and report its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(func(ctx context.Context) error {
				return o.checkServices(ctx, cmd.OutOrStdout())
			})
		},
	}
}

func (o *options) checkServices(ctx context.Context, out io.Writer) error {
	services := make(map[string]*altid.Services)
	defer func() {
		for _, s := range services {
			s.Close()
		}
	}()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDR\tSTATE\tMSIZE")
	for _, svc := range o.cfg.Services {
		client := o.cfg.ServiceClient(svc)
		o.configure(client)

		// services with the same overrides share a set
		key := client.User + "\x00" + client.Aname
		set, ok := services[key]
		if !ok {
			set = altid.NewServices(client)
			services[key] = set
		}
		c, err := set.Connect(ctx, svc.Name, svc.Addr)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t-\n", svc.Name, svc.Addr, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", svc.Name, svc.Addr, c.State(), c.Msize())
	}
	return w.Flush()
}
