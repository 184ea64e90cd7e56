package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"GeoMatch-App/internal/domain/model"
)

var wantKind string

// updateCmd 1件の位置更新
var updateCmd = &cobra.Command{
	Use:   "update [agent-id] [latitude] [longitude]",
	Short: "エージェントの位置を更新する",
	Long: `共有バックエンド（redis, postgres など）に対して位置を1件書き込みます。

Example:
  geomatch update D1 35.0047 135.7700 --backend redis`,
	Args: cobra.ExactArgs(3),
	RunE: runUpdate,
}

// nearbyCmd 近傍検索
var nearbyCmd = &cobra.Command{
	Use:   "nearby [agent-id] [latitude] [longitude]",
	Short: "同じセルにいる相手側のエージェントを検索する",
	Args:  cobra.ExactArgs(3),
	RunE:  runNearby,
}

// newIDCmd 種別タグ付きID
var newIDCmd = &cobra.Command{
	Use:   "new-id [driver|passenger]",
	Short: "種別タグ付きのエージェントIDを払い出す",
	Args:  cobra.ExactArgs(1),
	RunE:  runNewID,
}

// cellCmd セル情報
var cellCmd = &cobra.Command{
	Use:   "cell [geohash]",
	Short: "セルの範囲とメンバー数を表示する",
	Args:  cobra.ExactArgs(1),
	RunE:  runCell,
}

func init() {
	nearbyCmd.Flags().StringVarP(&wantKind, "kind", "k", "", "検索する種別（未指定時はIDの種別の相手側）")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	service, backend, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := service.UpdateLocation(cmd.Context(), args[0], args[1], args[2]); err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"status": "success"})
}

func runNearby(cmd *cobra.Command, args []string) error {
	want := model.KindOf(args[0]).Opposite()
	if wantKind != "" {
		kind, err := model.ParseKind(wantKind)
		if err != nil {
			return err
		}
		want = kind
	}

	service, backend, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	results, err := service.FindNearby(cmd.Context(), args[0], args[1], args[2], want)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]any{"status": "success", "results": results})
}

func runNewID(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseKind(args[0])
	if err != nil {
		return err
	}
	id, err := model.NewAgentID(kind)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
	return err
}

func runCell(cmd *cobra.Command, args []string) error {
	service, backend, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	view, err := service.DescribeCell(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, view)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
