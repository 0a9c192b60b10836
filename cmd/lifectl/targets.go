package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lg/life-dashboard-api/internal/nutrition"
)

var (
	targetsSex        string
	targetsAge        int
	targetsBirthDate  string
	targetsHeightCM   float64
	targetsWeightKG   float64
	targetsActivity   string
	targetsMultiplier float64
	targetsGoal       string
	targetsPercent    float64
	targetsProtein    float64
	targetsFat        float64
	targetsDate       string
)

// targetsCmd computes daily targets from flags without touching the database.
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Compute daily calorie and macro targets offline",
	RunE: func(cmd *cobra.Command, args []string) error {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		if targetsDate != "" {
			d, err := time.Parse("2006-01-02", targetsDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", targetsDate)
			}
			today = d
		}

		p := nutrition.Profile{
			Sex:           nutrition.Sex(targetsSex),
			HeightCM:      targetsHeightCM,
			WeightKG:      targetsWeightKG,
			ActivityLevel: nutrition.ActivityLevel(targetsActivity),
		}
		if p.Sex != nutrition.Male && p.Sex != nutrition.Female {
			return fmt.Errorf("invalid --sex %q (expected male or female)", targetsSex)
		}
		if !nutrition.ValidActivityLevel(p.ActivityLevel) {
			return fmt.Errorf("invalid --activity %q", targetsActivity)
		}
		if targetsBirthDate != "" {
			b, err := time.Parse("2006-01-02", targetsBirthDate)
			if err != nil {
				return fmt.Errorf("invalid --birth-date %q (expected YYYY-MM-DD)", targetsBirthDate)
			}
			p.BirthDate = &b
		}
		if targetsAge > 0 {
			p.AgeYears = &targetsAge
		}
		if cmd.Flags().Changed("multiplier") {
			p.ActivityMultiplier = &targetsMultiplier
		}

		g := nutrition.Goal{
			Type:          nutrition.GoalType(targetsGoal),
			ProteinGPerKG: targetsProtein,
			FatGPerKG:     targetsFat,
		}
		if !nutrition.ValidGoalType(g.Type) {
			return fmt.Errorf("invalid --goal %q", targetsGoal)
		}
		if cmd.Flags().Changed("adjust") {
			g.CalorieAdjustmentPercent = targetsPercent
			g.AdjustmentCustomized = true
		}

		t, err := nutrition.ComputeTargets(p, g, today)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Date:        %s\n", today.Format("2006-01-02"))
		fmt.Fprintf(out, "BMR:         %d kcal\n", t.BMR)
		fmt.Fprintf(out, "TDEE:        %d kcal (x%.3g)\n", t.TDEE, t.ActivityMultiplier)
		fmt.Fprintf(out, "Adjustment:  %+g%%\n", t.EffectiveAdjustmentPercent)
		fmt.Fprintf(out, "Calories:    %d kcal\n", t.Calories)
		fmt.Fprintf(out, "Protein:     %d g\n", t.ProteinG)
		fmt.Fprintf(out, "Carbs:       %d g\n", t.CarbsG)
		fmt.Fprintf(out, "Fat:         %d g\n", t.FatG)
		fmt.Fprintf(out, "Algorithm:   %s\n", t.AlgorithmVersion)
		return nil
	},
}

func init() {
	f := targetsCmd.Flags()
	f.StringVar(&targetsSex, "sex", "", "male or female")
	f.IntVar(&targetsAge, "age", 0, "Age in years (used when --birth-date is not set)")
	f.StringVar(&targetsBirthDate, "birth-date", "", "Birth date (YYYY-MM-DD)")
	f.Float64Var(&targetsHeightCM, "height", 0, "Height in cm")
	f.Float64Var(&targetsWeightKG, "weight", 0, "Weight in kg")
	f.StringVar(&targetsActivity, "activity", "moderate", "sedentary, light, moderate, active, athlete, or custom")
	f.Float64Var(&targetsMultiplier, "multiplier", 0, "Activity multiplier for --activity custom")
	f.StringVar(&targetsGoal, "goal", "maintenance", "fat_loss, maintenance, recomp, lean_bulk, or bulk")
	f.Float64Var(&targetsPercent, "adjust", 0, "Calorie adjustment percent (overrides the goal default)")
	f.Float64Var(&targetsProtein, "protein-per-kg", 0, "Protein g/kg (0 uses the goal default)")
	f.Float64Var(&targetsFat, "fat-per-kg", 0, "Fat g/kg (0 uses the default)")
	f.StringVar(&targetsDate, "date", "", "Date to compute for (YYYY-MM-DD, default today)")
	_ = targetsCmd.MarkFlagRequired("sex")
	_ = targetsCmd.MarkFlagRequired("height")
	_ = targetsCmd.MarkFlagRequired("weight")
	rootCmd.AddCommand(targetsCmd)
}
