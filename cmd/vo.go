/***************************************************************
 *
 * Copyright (C) 2024, Quattor Community
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package main

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quattor/scdbtools/config"
	"github.com/quattor/scdbtools/pan"
	"github.com/quattor/scdbtools/param"
	"github.com/quattor/scdbtools/vo"
)

var (
	voCmd = &cobra.Command{
		Use:   "vo",
		Short: "Generate the VO configuration templates",
	}

	voGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate VO and VOMS server templates from the VO ID cards",
		Long: `Read the VO ID cards and write, in every template branch, one
parameter template per VO, one certificate template per VOMS server, the list
of VOs and the list of VOMS server DNs. Templates are only rewritten when
their content changes.`,
		Example: `# Update two branches from the operations portal
scdb vo generate --cards https://cic.example.org/vo-cards.xml --branch cfg/main --branch cfg/test`,
		Args: cobra.NoArgs,
		RunE: runVOGenerate,
	}
)

func init() {
	voCmd.AddCommand(voGenerateCmd)

	flags := voGenerateCmd.Flags()
	flags.String("cards", "", "URL or path of the VO ID cards")
	flags.StringSlice("branch", nil, "Template branch to update; may be repeated")
	flags.Bool("legacy-suffixes", false, "Allocate FQAN account suffixes with the legacy algorithm")
	bindFlag(flags.Lookup("cards"), param.VO_IdCardsUri.GetName())
	bindFlag(flags.Lookup("branch"), param.VO_Branches.GetName())
	bindFlag(flags.Lookup("legacy-suffixes"), param.VO_LegacySuffixAlgorithm.GetName())
}

func runVOGenerate(cmd *cobra.Command, _ []string) error {
	generator, err := vo.NewGenerator(vo.GeneratorOptions{
		CardsURI: param.VO_IdCardsUri.GetString(),
		Branches: param.VO_Branches.GetStringSlice(),
		Namespaces: vo.Namespaces{
			Params:     param.VO_ParamsNamespace.GetString(),
			Certs:      param.VO_CertsNamespace.GetString(),
			SiteParams: param.VO_SiteParamsNamespace.GetString(),
			AllVOs:     param.VO_AllVOsTemplate.GetString(),
			DNList:     param.VO_DNListTemplate.GetString(),
		},
		LegacySuffixes:          param.VO_LegacySuffixAlgorithm.GetBool(),
		LegacySuffixMaxAttempts: param.VO_LegacySuffixMaxAttempts.GetInt(),
		Writer:                  pan.NewWriter(param.DryRun.GetBool()),
		HTTPClient:              config.GetHTTPClient(),
	})
	if err != nil {
		return err
	}

	result, err := generator.Run(cmd.Context())
	if err != nil {
		return err
	}
	log.Infof("Processed %d VOs and %d VOMS servers in %s", result.VOs, result.Servers,
		strings.Join(param.VO_Branches.GetStringSlice(), ", "))
	return nil
}
