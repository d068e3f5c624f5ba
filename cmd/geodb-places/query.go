package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodb-places/internal/core/config"
	"github.com/mohammed-shakir/geodb-places/internal/core/httpclient"
	"github.com/mohammed-shakir/geodb-places/internal/geodb"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

// noSchema reports an empty schema, so only the geometry column is added.
type noSchema struct{}

func (noSchema) GetCollectionInfo(context.Context, string, string) (geodb.CollectionInfo, error) {
	return geodb.CollectionInfo{}, nil
}

func queryCmd(gf *globalFlags) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the geoDB request built for every place group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd, gf)
			file, err := config.LoadPlaces(cfg.PlacesConfig)
			if err != nil {
				return err
			}
			if !file.HasGeoDB() {
				return fmt.Errorf("%s has no GeoDBConf block", cfg.PlacesConfig)
			}
			descs, err := file.Descriptors()
			if err != nil {
				return err
			}

			var schema places.SchemaFetcher = noSchema{}
			if !offline {
				conn, err := config.ResolveConnection(file.Resolver())
				if err != nil {
					return err
				}
				c, err := geodb.New(geodb.Options{
					ServerURL:    conn.ServerURL,
					ServerPort:   conn.ServerPort,
					ClientID:     conn.ClientID,
					ClientSecret: conn.ClientSecret,
					Audience:     conn.Audience,
					AuthDomain:   conn.AuthDomain.Raw,
					HTTPClient:   httpclient.NewOutbound(cfg.GeoDBTimeout),
					Logger:       newLogger(cfg, "query", os.Stderr),
				})
				if err != nil {
					return err
				}
				schema = c
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range descs {
				if err := d.Validate(); err != nil {
					fmt.Fprintf(tw, "%s\tERROR\t%v\n", d.Identifier, err)
					continue
				}
				q, err := places.BuildQuery(cmd.Context(), d.Query, schema)
				if err != nil {
					fmt.Fprintf(tw, "%s\tERROR\t%v\n", d.Identifier, err)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\n", d.Identifier, q.String())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "do not contact the geoDB; only the geometry column is added")
	return cmd
}
